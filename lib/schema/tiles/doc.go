// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tiles defines the data types of the tiles telemetry
// pipeline: event kinds, positional indexes, on-screen tile snapshots,
// and the JSON envelope uploaded to the tiles collector.
//
// The collector is an external HTTP service, so these types carry json
// tags only (see lib/codec for the tagging convention). Times cross the
// wire as integer milliseconds: monotonic readings as milliseconds
// since boot, server times as milliseconds since the Unix epoch, with 0
// meaning "unknown".
package tiles
