// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tileupload

import "time"

// Backoff configures the delay applied to scheduled cycles after
// consecutive failures. The zero value disables backoff.
type Backoff struct {
	// Initial is the delay after the first failure. Each further
	// consecutive failure doubles it. Zero disables backoff.
	Initial time.Duration

	// Max caps the delay. Zero means no cap.
	Max time.Duration
}

// Enabled reports whether scheduled cycles are ever delayed.
func (b Backoff) Enabled() bool { return b.Initial > 0 }

// Delay returns how long to wait after the given number of consecutive
// failures. Zero failures, or a disabled backoff, means no delay.
func (b Backoff) Delay(failures int) time.Duration {
	if !b.Enabled() || failures <= 0 {
		return 0
	}
	delay := b.Initial
	for i := 1; i < failures; i++ {
		if b.Max > 0 && delay >= b.Max {
			break
		}
		// Stop doubling before overflow.
		if delay > time.Duration(1<<62) {
			break
		}
		delay *= 2
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}
