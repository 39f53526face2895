// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tilestate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pierrec/lz4/v4"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/tiles/lib/codec"
	"github.com/bureau-foundation/tiles/lib/schema/tiles"
)

// Compression tags stored in the spool row.
const (
	compressionNone = 0
	compressionLZ4  = 1
)

// spoolRecord is the on-disk form of one event. Server times are Unix
// milliseconds and realtime is nanoseconds since boot, so the record
// is independent of Go's time encoding.
type spoolRecord struct {
	Kind          string `cbor:"1,keyasint"`
	Index         int    `cbor:"2,keyasint,omitempty"`
	HasIndex      bool   `cbor:"3,keyasint,omitempty"`
	Tiles         []byte `cbor:"4,keyasint,omitempty"`
	Epoch         int    `cbor:"5,keyasint"`
	Realtime      int64  `cbor:"6,keyasint"`
	EstimatedTime int64  `cbor:"7,keyasint,omitempty"`
	MinimumTime   int64  `cbor:"8,keyasint,omitempty"`
}

func recordFromEvent(event tiles.Event) spoolRecord {
	position, hasIndex := event.Index.Position()
	return spoolRecord{
		Kind:          string(event.Kind),
		Index:         position,
		HasIndex:      hasIndex,
		Tiles:         event.Tiles,
		Epoch:         event.Epoch,
		Realtime:      int64(event.Realtime),
		EstimatedTime: tiles.TimeMillis(event.EstimatedServerTime),
		MinimumTime:   tiles.TimeMillis(event.MinServerTime),
	}
}

func (r spoolRecord) event() tiles.Event {
	index := tiles.NoIndex
	if r.HasIndex {
		index = tiles.At(r.Index)
	}
	return tiles.Event{
		Kind:                tiles.EventKind(r.Kind),
		Index:               index,
		Tiles:               r.Tiles,
		Epoch:               r.Epoch,
		Realtime:            time.Duration(r.Realtime),
		EstimatedServerTime: tiles.MillisTime(r.EstimatedTime),
		MinServerTime:       tiles.MillisTime(r.MinimumTime),
	}
}

// encodeSpool serializes events and compresses the result. Returns the
// compression tag, the uncompressed size, and the stored bytes.
func encodeSpool(events []tiles.Event) (int, int, []byte, error) {
	records := make([]spoolRecord, len(events))
	for i, event := range events {
		records[i] = recordFromEvent(event)
	}
	raw, err := codec.Marshal(records)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("encoding spool: %w", err)
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	size, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("compressing spool: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if size == 0 || size >= len(raw) {
		return compressionNone, len(raw), raw, nil
	}
	return compressionLZ4, len(raw), compressed[:size], nil
}

func decodeSpool(compression, rawSize int, data []byte, logger *slog.Logger) ([]tiles.Event, error) {
	raw := data
	switch compression {
	case compressionNone:
	case compressionLZ4:
		raw = make([]byte, rawSize)
		size, err := lz4.UncompressBlock(data, raw)
		if err != nil {
			return nil, fmt.Errorf("decompressing spool: %w", err)
		}
		if size != rawSize {
			return nil, fmt.Errorf("decompressing spool: got %d bytes, want %d", size, rawSize)
		}
	default:
		return nil, fmt.Errorf("spool: unknown compression %d", compression)
	}

	var records []spoolRecord
	if err := codec.Unmarshal(raw, &records); err != nil {
		if diagnostic, diagnoseErr := codec.Diagnose(raw); diagnoseErr == nil {
			logger.Debug("undecodable spool", "diagnostic", diagnostic)
		}
		return nil, fmt.Errorf("decoding spool: %w", err)
	}
	events := make([]tiles.Event, len(records))
	for i, record := range records {
		events[i] = record.event()
	}
	return events, nil
}

// SaveSpool replaces the spooled events with events. An empty slice
// clears the spool.
func (s *SQLite) SaveSpool(ctx context.Context, events []tiles.Event) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("tilestate: save spool: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("tilestate: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	if len(events) == 0 {
		if err = sqlitex.Execute(conn, "DELETE FROM spool", nil); err != nil {
			return fmt.Errorf("tilestate: clear spool: %w", err)
		}
		return nil
	}

	compression, rawSize, data, err := encodeSpool(events)
	if err != nil {
		return fmt.Errorf("tilestate: %w", err)
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO spool (id, compression, raw_size, event_count, data) VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			compression = excluded.compression,
			raw_size = excluded.raw_size,
			event_count = excluded.event_count,
			data = excluded.data`,
		&sqlitex.ExecOptions{Args: []any{compression, rawSize, len(events), data}},
	)
	if err != nil {
		return fmt.Errorf("tilestate: save spool: %w", err)
	}

	s.logger.Debug("spool saved",
		"events", len(events),
		"raw_size", rawSize,
		"stored_size", len(data),
	)
	return nil
}

// LoadSpool returns the spooled events in recording order, or nil if
// the spool is empty.
func (s *SQLite) LoadSpool(ctx context.Context) ([]tiles.Event, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("tilestate: load spool: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		found       bool
		compression int
		rawSize     int
		data        []byte
	)
	err = sqlitex.Execute(conn,
		"SELECT compression, raw_size, data FROM spool WHERE id = 1",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				compression = stmt.ColumnInt(0)
				rawSize = stmt.ColumnInt(1)
				data = make([]byte, stmt.ColumnLen(2))
				stmt.ColumnBytes(2, data)
				return nil
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("tilestate: load spool: %w", err)
	}
	if !found {
		return nil, nil
	}

	events, err := decodeSpool(compression, rawSize, data, s.logger)
	if err != nil {
		return nil, fmt.Errorf("tilestate: %w", err)
	}
	return events, nil
}
