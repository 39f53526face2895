// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tilestate

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/tiles/lib/schema/tiles"
	"github.com/bureau-foundation/tiles/lib/testutil"
	"github.com/bureau-foundation/tiles/lib/tileclock"
)

func openTestDB(t *testing.T, path string) *SQLite {
	t.Helper()
	db, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteFreshStateIsNeverRecorded(t *testing.T) {
	db := openTestDB(t, testutil.StatePath(t))

	state, err := db.LoadState(context.Background())
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if state.Epoch != 0 {
		t.Errorf("Epoch = %d, want 0", state.Epoch)
	}
	if state.LastRealtime != tileclock.NeverRecorded {
		t.Errorf("LastRealtime = %v, want NeverRecorded", state.LastRealtime)
	}
	if !state.Anchor.IsZero() {
		t.Errorf("Anchor = %+v, want zero", state.Anchor)
	}
}

func TestSQLiteStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := testutil.StatePath(t)
	serverTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	db, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.SaveEpoch(ctx, 3, 10*time.Second); err != nil {
		t.Fatalf("SaveEpoch: %v", err)
	}
	if err := db.SaveRealtime(ctx, 12*time.Second); err != nil {
		t.Fatalf("SaveRealtime: %v", err)
	}
	anchor := tileclock.Anchor{ServerTime: serverTime, Realtime: 11 * time.Second, Epoch: 3}
	if err := db.SaveAnchor(ctx, anchor); err != nil {
		t.Fatalf("SaveAnchor: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openTestDB(t, path)
	state, err := reopened.LoadState(ctx)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if state.Epoch != 3 {
		t.Errorf("Epoch = %d, want 3", state.Epoch)
	}
	if state.LastRealtime != 12*time.Second {
		t.Errorf("LastRealtime = %v, want 12s", state.LastRealtime)
	}
	if !state.Anchor.ServerTime.Equal(serverTime) || state.Anchor.Realtime != 11*time.Second || state.Anchor.Epoch != 3 {
		t.Errorf("Anchor = %+v, want %+v", state.Anchor, anchor)
	}
}

func testEvents() []tiles.Event {
	minimum := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []tiles.Event{
		{
			Kind:                tiles.KindClick,
			Index:               tiles.At(0),
			Tiles:               json.RawMessage(`[{"id":1},{"id":2}]`),
			Epoch:               2,
			Realtime:            1500 * time.Millisecond,
			EstimatedServerTime: minimum.Add(time.Minute),
			MinServerTime:       minimum,
		},
		{
			Kind:     tiles.KindView,
			Index:    tiles.NoIndex,
			Tiles:    json.RawMessage(`[]`),
			Epoch:    2,
			Realtime: 2 * time.Second,
		},
	}
}

func assertEvents(t *testing.T, got, want []tiles.Event) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Kind != w.Kind || g.Index != w.Index || g.Epoch != w.Epoch || g.Realtime != w.Realtime {
			t.Errorf("event %d = %+v, want %+v", i, g, w)
		}
		if !g.EstimatedServerTime.Equal(w.EstimatedServerTime) || !g.MinServerTime.Equal(w.MinServerTime) {
			t.Errorf("event %d times = (%v, %v), want (%v, %v)", i,
				g.EstimatedServerTime, g.MinServerTime, w.EstimatedServerTime, w.MinServerTime)
		}
		if string(g.Tiles) != string(w.Tiles) {
			t.Errorf("event %d tiles = %s, want %s", i, g.Tiles, w.Tiles)
		}
	}
}

func TestSQLiteSpoolRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, testutil.StatePath(t))

	events, err := db.LoadSpool(ctx)
	if err != nil {
		t.Fatalf("LoadSpool on empty: %v", err)
	}
	if events != nil {
		t.Fatalf("empty spool returned %d events", len(events))
	}

	want := testEvents()
	if err := db.SaveSpool(ctx, want); err != nil {
		t.Fatalf("SaveSpool: %v", err)
	}
	got, err := db.LoadSpool(ctx)
	if err != nil {
		t.Fatalf("LoadSpool: %v", err)
	}
	assertEvents(t, got, want)

	// A second save replaces rather than appends.
	if err := db.SaveSpool(ctx, want[1:]); err != nil {
		t.Fatalf("SaveSpool: %v", err)
	}
	got, err = db.LoadSpool(ctx)
	if err != nil {
		t.Fatalf("LoadSpool: %v", err)
	}
	assertEvents(t, got, want[1:])

	if err := db.SaveSpool(ctx, nil); err != nil {
		t.Fatalf("SaveSpool(nil): %v", err)
	}
	got, err = db.LoadSpool(ctx)
	if err != nil {
		t.Fatalf("LoadSpool: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("cleared spool returned %d events", len(got))
	}
}

func TestSpoolCompressesRepetitiveBatches(t *testing.T) {
	snapshot := json.RawMessage(`[` + strings.Repeat(`{"id":7},`, 50) + `{"id":8}]`)
	events := make([]tiles.Event, 200)
	for i := range events {
		events[i] = tiles.Event{Kind: tiles.KindView, Tiles: snapshot, Epoch: 1, Realtime: time.Duration(i) * time.Second}
	}

	compression, rawSize, data, err := encodeSpool(events)
	if err != nil {
		t.Fatalf("encodeSpool: %v", err)
	}
	if compression != compressionLZ4 {
		t.Fatalf("compression = %d, want lz4", compression)
	}
	if len(data) >= rawSize {
		t.Errorf("compressed size %d not smaller than raw %d", len(data), rawSize)
	}

	decoded, err := decodeSpool(compression, rawSize, data, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("decodeSpool: %v", err)
	}
	assertEvents(t, decoded, events)
}

func TestDecodeSpoolRejectsUnknownCompression(t *testing.T) {
	if _, err := decodeSpool(9, 0, nil, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatal("expected error for unknown compression")
	}
}

func TestDecodeSpoolRejectsCorruptRecords(t *testing.T) {
	// A CBOR text string where an array of records belongs.
	corrupt := []byte{0x63, 'a', 'b', 'c'}
	if _, err := decodeSpool(compressionNone, len(corrupt), corrupt, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatal("expected error for a spool that is not a record array")
	}
}

func TestMemoryMatchesSQLiteDefaults(t *testing.T) {
	ctx := context.Background()
	memory := NewMemory()

	state, err := memory.LoadState(ctx)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if state.LastRealtime != tileclock.NeverRecorded {
		t.Errorf("LastRealtime = %v, want NeverRecorded", state.LastRealtime)
	}

	if err := memory.SaveEpoch(ctx, 1, 1500*time.Millisecond); err != nil {
		t.Fatalf("SaveEpoch: %v", err)
	}
	if value, ok := memory.Value("last_realtime"); !ok || value != 1500 {
		t.Errorf("last_realtime = %d (%v), want 1500", value, ok)
	}
	if value, _ := memory.Value("clock"); value != 1 {
		t.Errorf("clock = %d, want 1", value)
	}
}

func TestMemoryFailSaves(t *testing.T) {
	ctx := context.Background()
	memory := NewMemory()
	failure := context.DeadlineExceeded
	memory.FailSaves(failure)

	if err := memory.SaveRealtime(ctx, time.Second); err != failure {
		t.Errorf("SaveRealtime = %v, want %v", err, failure)
	}
	if err := memory.SaveSpool(ctx, testEvents()); err != failure {
		t.Errorf("SaveSpool = %v, want %v", err, failure)
	}

	memory.FailSaves(nil)
	if err := memory.SaveSpool(ctx, testEvents()); err != nil {
		t.Fatalf("SaveSpool after reset: %v", err)
	}
	events, _ := memory.LoadSpool(ctx)
	assertEvents(t, events, testEvents())
}
