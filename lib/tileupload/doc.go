// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tileupload moves queued tile events to the remote collector.
//
// A [Coordinator] runs one upload cycle at a time:
//
//	Idle -> Draining -> Uploading -> Success | Failed
//
// The cycle checkpoints the boot clock, drains the whole queue,
// serializes the batch into the collector's JSON envelope, and POSTs
// it through a [Sender]. On a 2xx response the batch is discarded and
// the clock model is recalibrated from the response's Date header. On
// any failure the batch goes back to the front of the queue, so the
// next cycle retries it before anything newer. Delivery is therefore
// at-least-once: a response lost after the collector stored the batch
// leads to a resend. Each body carries a BLAKE3 digest header so the
// collector can recognize the resend.
//
// Network problems never escape as panics or errors from
// [Coordinator.RunUploadCycle]; they are reported in the returned
// [Result]. The only panic is in debug mode, for an event kind outside
// the closed set, which is a programming error in the producer.
package tileupload
