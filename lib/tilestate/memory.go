// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tilestate

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/tiles/lib/schema/tiles"
	"github.com/bureau-foundation/tiles/lib/tileclock"
)

// Memory is an in-process store with the same semantics as SQLite.
// Nothing survives the process. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	values map[string]int64
	spool  []tiles.Event
	fail   error
}

var _ tileclock.Store = (*Memory)(nil)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]int64)}
}

// LoadState implements tileclock.Store.
func (m *Memory) LoadState(ctx context.Context) (tileclock.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return stateFromValues(m.values), nil
}

// SaveEpoch implements tileclock.Store.
func (m *Memory) SaveEpoch(ctx context.Context, epoch int, realtime time.Duration) error {
	return m.write(map[string]int64{
		keyClock:        int64(epoch),
		keyLastRealtime: tiles.DurationMillis(realtime),
	})
}

// SaveRealtime implements tileclock.Store.
func (m *Memory) SaveRealtime(ctx context.Context, realtime time.Duration) error {
	return m.write(map[string]int64{keyLastRealtime: tiles.DurationMillis(realtime)})
}

// SaveAnchor implements tileclock.Store.
func (m *Memory) SaveAnchor(ctx context.Context, anchor tileclock.Anchor) error {
	return m.write(map[string]int64{
		keyLastUploadAbsTime:  tiles.TimeMillis(anchor.ServerTime),
		keyLastUploadRealtime: tiles.DurationMillis(anchor.Realtime),
		keyLastUploadClock:    int64(anchor.Epoch),
	})
}

// SaveSpool replaces the spooled events.
func (m *Memory) SaveSpool(ctx context.Context, events []tiles.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.spool = slices.Clone(events)
	return nil
}

// LoadSpool returns the spooled events.
func (m *Memory) LoadSpool(ctx context.Context) ([]tiles.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.spool), nil
}

// Close is a no-op; it lets Memory stand in for SQLite.
func (m *Memory) Close() error { return nil }

// FailSaves makes every subsequent Save call return err. Pass nil to
// restore normal behavior.
func (m *Memory) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Value returns a raw state value, for tests that check what was
// persisted.
func (m *Memory) Value(key string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok
}

func (m *Memory) write(values map[string]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for key, value := range values {
		m.values[key] = value
	}
	return nil
}
