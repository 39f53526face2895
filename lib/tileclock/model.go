// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tileclock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/tiles/lib/clock"
)

// DetectReboot reports whether the device restarted between two
// boot-clock readings. The boot clock only runs backwards across a
// restart.
func DetectReboot(last, now time.Duration) bool {
	return now < last
}

// InvalidTimeError is returned by Recalibrate for a server time that
// is not positive. The previous anchor is kept.
type InvalidTimeError struct {
	ServerTime time.Time
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("tileclock: invalid server time %v", e.ServerTime)
}

// Stamp is the clock metadata attached to an event when it is
// recorded.
type Stamp struct {
	Epoch     int
	Realtime  time.Duration
	Estimated time.Time
	Minimum   time.Time
}

// Model tracks the boot epoch and the current anchor. The epoch is
// fixed for the life of the process; the anchor changes only through
// Recalibrate. Safe for concurrent use: producers stamp events while
// the upload path recalibrates.
type Model struct {
	store  Store
	source clock.Clock
	logger *slog.Logger
	epoch  int

	mu     sync.RWMutex
	anchor Anchor
}

// Open loads persisted state, performs the startup reboot check, and
// returns a ready Model. When a reboot is inferred the incremented
// epoch is persisted before Open returns; the current reading is
// persisted either way.
func Open(ctx context.Context, store Store, source clock.Clock, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	state, err := store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("tileclock: loading state: %w", err)
	}

	now := source.SinceBoot()
	epoch := state.Epoch
	if DetectReboot(state.LastRealtime, now) {
		epoch++
		if err := store.SaveEpoch(ctx, epoch, now); err != nil {
			return nil, fmt.Errorf("tileclock: saving boot epoch: %w", err)
		}
		logger.Info("reboot detected, advancing boot epoch",
			"epoch", epoch,
			"realtime", now,
		)
	} else if err := store.SaveRealtime(ctx, now); err != nil {
		return nil, fmt.Errorf("tileclock: saving realtime: %w", err)
	}

	model := &Model{
		store:  store,
		source: source,
		logger: logger,
		epoch:  epoch,
		anchor: state.Anchor,
	}
	logger.Debug("clock model ready",
		"epoch", epoch,
		"anchor_server_time", state.Anchor.ServerTime,
		"anchor_epoch", state.Anchor.Epoch,
		"anchor_current", model.anchorUsable(state.Anchor),
	)
	return model, nil
}

// CurrentBootEpoch returns the boot epoch computed at Open.
func (m *Model) CurrentBootEpoch() int {
	return m.epoch
}

// Now returns the current boot-clock reading.
func (m *Model) Now() time.Duration {
	return m.source.SinceBoot()
}

// Checkpoint reads the boot clock and persists the reading for the
// next process's reboot check.
func (m *Model) Checkpoint(ctx context.Context) (time.Duration, error) {
	now := m.source.SinceBoot()
	if err := m.store.SaveRealtime(ctx, now); err != nil {
		return now, fmt.Errorf("tileclock: checkpoint: %w", err)
	}
	return now, nil
}

// Anchor returns the current anchor.
func (m *Model) Anchor() Anchor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anchor
}

// EstimateServerTime extrapolates the anchor to the boot-clock reading
// now. Returns the zero time when no anchor exists or the anchor
// belongs to an earlier epoch.
func (m *Model) EstimateServerTime(now time.Duration) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.estimateLocked(now)
}

// MinimumServerTime returns the anchor's server time regardless of
// epoch, or the zero time if no upload has ever succeeded.
func (m *Model) MinimumServerTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anchor.ServerTime
}

// Stamp reads the boot clock and returns the full stamp for an event
// recorded now. The anchor is read once so Estimated and Minimum are
// consistent with each other.
func (m *Model) Stamp() Stamp {
	now := m.source.SinceBoot()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stamp{
		Epoch:     m.epoch,
		Realtime:  now,
		Estimated: m.estimateLocked(now),
		Minimum:   m.anchor.ServerTime,
	}
}

// Recalibrate sets a new anchor at the current epoch from a server
// time received at boot-clock reading now, and persists it. The
// in-memory anchor is updated even if persisting fails; the error is
// returned so the caller can log it.
func (m *Model) Recalibrate(ctx context.Context, serverTime time.Time, now time.Duration) error {
	if serverTime.IsZero() || serverTime.UnixMilli() <= 0 {
		return &InvalidTimeError{ServerTime: serverTime}
	}

	anchor := Anchor{ServerTime: serverTime, Realtime: now, Epoch: m.epoch}
	m.mu.Lock()
	m.anchor = anchor
	m.mu.Unlock()

	if err := m.store.SaveAnchor(ctx, anchor); err != nil {
		return fmt.Errorf("tileclock: saving anchor: %w", err)
	}
	return nil
}

func (m *Model) estimateLocked(now time.Duration) time.Time {
	if !m.anchorUsable(m.anchor) {
		return time.Time{}
	}
	// A reading behind the anchor within one epoch means the boot
	// clock is not behaving monotonically; make no claim.
	if now < m.anchor.Realtime {
		return time.Time{}
	}
	return m.anchor.ServerTime.Add(now - m.anchor.Realtime)
}

func (m *Model) anchorUsable(anchor Anchor) bool {
	return !anchor.IsZero() && anchor.Epoch == m.epoch
}
