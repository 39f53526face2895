// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tilestate

// Keys of the state table. Values are integers: epochs as counters,
// readings as milliseconds since boot, server times as Unix
// milliseconds.
const (
	keyLastRealtime       = "last_realtime"
	keyClock              = "clock"
	keyLastUploadAbsTime  = "last_upload_abs_time"
	keyLastUploadRealtime = "last_upload_realtime"
	keyLastUploadClock    = "last_upload_clock"
)
