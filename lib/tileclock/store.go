// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tileclock

import (
	"context"
	"math"
	"time"
)

// NeverRecorded is the LastRealtime reported by a store that has never
// saved a reading. It compares greater than any real reading, so a
// first start counts as a reboot and moves the epoch off its zero
// value; an anchor persisted with epoch 0 can then never be mistaken
// for a current one.
const NeverRecorded = time.Duration(math.MaxInt64)

// Anchor ties a boot-clock reading to a server time.
type Anchor struct {
	// ServerTime is the absolute server time reported by a successful
	// upload. Zero if no upload has ever succeeded.
	ServerTime time.Time

	// Realtime is the boot-clock reading when ServerTime was received.
	Realtime time.Duration

	// Epoch is the boot epoch Realtime was read in.
	Epoch int
}

// IsZero reports whether no anchor has been established.
func (a Anchor) IsZero() bool { return a.ServerTime.IsZero() }

// State is the persisted clock state loaded at startup.
type State struct {
	Epoch        int
	LastRealtime time.Duration
	Anchor       Anchor
}

// Store persists clock state. Implementations must make each Save call
// atomic: a crash never leaves half of an anchor written.
type Store interface {
	// LoadState returns the persisted state. Missing values load as
	// zero, except LastRealtime which loads as NeverRecorded.
	LoadState(ctx context.Context) (State, error)

	// SaveEpoch persists a new boot epoch together with the reading
	// that revealed it.
	SaveEpoch(ctx context.Context, epoch int, realtime time.Duration) error

	// SaveRealtime persists the latest boot-clock reading.
	SaveRealtime(ctx context.Context, realtime time.Duration) error

	// SaveAnchor persists a new anchor.
	SaveAnchor(ctx context.Context, anchor Anchor) error
}
