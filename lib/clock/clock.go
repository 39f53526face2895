// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts time operations for testability.
type Clock interface {
	// Now returns the current wall time. Use it for scheduling and
	// log context only.
	Now() time.Time

	// SinceBoot returns the monotonic time elapsed since the device
	// booted. The reading includes time spent suspended and resets
	// when the device restarts.
	SinceBoot() time.Duration

	// NewTicker returns a Ticker that delivers ticks on its C channel
	// at the specified interval. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker wraps a periodic timer. Read ticks from C. Call Stop when the
// Ticker is no longer needed.
//
// C has capacity 1, matching time.Ticker: a slow consumer misses ticks
// rather than queueing them.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. Stop does not close C.
func (t *Ticker) Stop() { t.stopFunc() }
