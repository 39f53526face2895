// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tilequeue holds recorded tile events in memory between
// upload cycles.
//
// The queue supports exactly the operations an upload cycle needs:
// producers append, the uploader takes everything at once with
// [Queue.DrainAll], and a failed upload puts its batch back at the
// front with [Queue.Restore] so ordering survives retries. Every
// operation is a short critical section with no I/O, so producers
// never wait on the network or the disk.
package tilequeue

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"github.com/bureau-foundation/tiles/lib/schema/tiles"
	"github.com/bureau-foundation/tiles/lib/tileclock"
)

// Stamper supplies the clock metadata for a new event.
// *tileclock.Model implements it.
type Stamper interface {
	Stamp() tileclock.Stamp
}

// Config holds the queue's policy knobs.
type Config struct {
	// MaxEvents caps the number of queued events. When an append or a
	// restore would exceed it, the oldest events are dropped and
	// counted. Zero means unbounded.
	MaxEvents int

	// Logger receives drop warnings. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Queue is a FIFO of recorded events. Safe for concurrent use.
type Queue struct {
	stamper   Stamper
	maxEvents int
	logger    *slog.Logger

	mu      sync.Mutex
	events  []tiles.Event
	dropped uint64
}

// New creates an empty queue whose events are stamped by stamper.
func New(stamper Stamper, cfg Config) *Queue {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Queue{
		stamper:   stamper,
		maxEvents: cfg.MaxEvents,
		logger:    logger,
	}
}

// Insert validates, stamps, and appends a new event. Returns
// *tiles.InvalidEventError when the index does not fit the kind or
// the snapshot is not valid JSON; the queue is unchanged in that case.
// An empty snapshot is sent as an empty tile list.
func (q *Queue) Insert(kind tiles.EventKind, index tiles.Index, snapshot json.RawMessage) (tiles.Event, error) {
	if err := tiles.Validate(kind, index); err != nil {
		return tiles.Event{}, err
	}
	// A snapshot that cannot be embedded would fail every upload of
	// the batch it lands in.
	if len(snapshot) > 0 && !json.Valid(snapshot) {
		return tiles.Event{}, &tiles.InvalidEventError{Kind: kind, Index: index, Reason: "snapshot is not valid JSON"}
	}

	stamp := q.stamper.Stamp()
	event := tiles.Event{
		Kind:                kind,
		Index:               index,
		Tiles:               snapshot,
		Epoch:               stamp.Epoch,
		Realtime:            stamp.Realtime,
		EstimatedServerTime: stamp.Estimated,
		MinServerTime:       stamp.Minimum,
	}

	q.mu.Lock()
	q.events = append(q.events, event)
	q.enforceCapLocked()
	q.mu.Unlock()
	return event, nil
}

// DrainAll removes and returns every queued event in insertion order.
// Returns nil when the queue is empty.
func (q *Queue) DrainAll() []tiles.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	events := q.events
	q.events = nil
	return events
}

// Restore puts a previously drained batch back in front of anything
// queued since, preserving the batch's internal order.
func (q *Queue) Restore(batch []tiles.Event) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	restored := make([]tiles.Event, 0, len(batch)+len(q.events))
	restored = append(restored, batch...)
	restored = append(restored, q.events...)
	q.events = restored
	q.enforceCapLocked()
}

// Pending returns a copy of the queued events without removing them.
func (q *Queue) Pending() []tiles.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.events)
}

// IsEmpty reports whether nothing is queued.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped returns how many events the cap has discarded since New.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *Queue) enforceCapLocked() {
	if q.maxEvents <= 0 || len(q.events) <= q.maxEvents {
		return
	}
	excess := len(q.events) - q.maxEvents
	q.events = slices.Delete(q.events, 0, excess)
	q.dropped += uint64(excess)
	q.logger.Warn("tile event queue full, dropped oldest events",
		"dropped", excess,
		"max_events", q.maxEvents,
		"total_dropped", q.dropped,
	)
}
