// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP body helpers for tiles.
//
// The collector answers uploads with small documents. Every helper
// here caps how much of a body it reads, so a misbehaving peer
// cannot exhaust memory or hold a connection open by streaming. Bodies
// that are expected to be large are not read through this package.
package netutil

import "io"

// MaxResponseSize bounds how much of a response body Drain reads:
// 1 MiB. Collector responses are a few hundred bytes.
const MaxResponseSize int64 = 1 << 20

// ErrorBody returns at most limit bytes of an error response body for
// use in an error message, with "..." appended when the body was
// longer. Read errors are ignored: a partial body is still useful.
func ErrorBody(body io.Reader, limit int64) string {
	data, _ := io.ReadAll(io.LimitReader(body, limit+1))
	if int64(len(data)) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}

// Drain discards up to MaxResponseSize bytes of body so the underlying
// connection can be reused.
func Drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
}
