// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tilestate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/tiles/lib/schema/tiles"
	"github.com/bureau-foundation/tiles/lib/sqlitepool"
	"github.com/bureau-foundation/tiles/lib/tileclock"
)

const schema = `
CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS spool (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	compression INTEGER NOT NULL,
	raw_size    INTEGER NOT NULL,
	event_count INTEGER NOT NULL,
	data        BLOB NOT NULL
);
`

// Config holds the parameters for opening a SQLite state database.
type Config struct {
	// Path is the database file. The parent directory must exist.
	Path string

	// Durable makes every commit survive power loss, not just a
	// process crash.
	Durable bool

	// Logger receives operational messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// SQLite stores clock state and the event spool in a SQLite database.
// Safe for concurrent use. While open it holds an exclusive lock on
// Path + ".lock", so at most one store uses a database at a time.
type SQLite struct {
	pool   *sqlitepool.Pool
	lock   *os.File
	logger *slog.Logger
}

var _ tileclock.Store = (*SQLite)(nil)

// Open opens (creating if needed) the state database at cfg.Path. It
// fails with *LockedError while another store has the same path open.
func Open(cfg Config) (*SQLite, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	lock, err := acquireLock(lockPath(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("tilestate: %w", err)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		Durable:  cfg.Durable,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		lock.Close()
		return nil, fmt.Errorf("tilestate: %w", err)
	}
	return &SQLite{pool: pool, lock: lock, logger: logger}, nil
}

// Close closes the database and releases its lock.
func (s *SQLite) Close() error {
	err := s.pool.Close()
	if lockErr := s.lock.Close(); err == nil && lockErr != nil {
		err = fmt.Errorf("tilestate: releasing lock: %w", lockErr)
	}
	return err
}

// LoadState implements tileclock.Store.
func (s *SQLite) LoadState(ctx context.Context) (tileclock.State, error) {
	values, err := s.readAll(ctx)
	if err != nil {
		return tileclock.State{}, err
	}
	return stateFromValues(values), nil
}

// SaveEpoch implements tileclock.Store.
func (s *SQLite) SaveEpoch(ctx context.Context, epoch int, realtime time.Duration) error {
	return s.write(ctx, map[string]int64{
		keyClock:        int64(epoch),
		keyLastRealtime: tiles.DurationMillis(realtime),
	})
}

// SaveRealtime implements tileclock.Store.
func (s *SQLite) SaveRealtime(ctx context.Context, realtime time.Duration) error {
	return s.write(ctx, map[string]int64{
		keyLastRealtime: tiles.DurationMillis(realtime),
	})
}

// SaveAnchor implements tileclock.Store.
func (s *SQLite) SaveAnchor(ctx context.Context, anchor tileclock.Anchor) error {
	return s.write(ctx, map[string]int64{
		keyLastUploadAbsTime:  tiles.TimeMillis(anchor.ServerTime),
		keyLastUploadRealtime: tiles.DurationMillis(anchor.Realtime),
		keyLastUploadClock:    int64(anchor.Epoch),
	})
}

func (s *SQLite) readAll(ctx context.Context) (map[string]int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("tilestate: load: %w", err)
	}
	defer s.pool.Put(conn)

	values := make(map[string]int64)
	err = sqlitex.Execute(conn, "SELECT key, value FROM state", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			values[stmt.ColumnText(0)] = stmt.ColumnInt64(1)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tilestate: load: %w", err)
	}
	return values, nil
}

// write upserts all values in one IMMEDIATE transaction so related
// keys (the three anchor fields) are never partially visible.
func (s *SQLite) write(ctx context.Context, values map[string]int64) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("tilestate: save: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("tilestate: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for key, value := range values {
		err = sqlitex.Execute(conn,
			"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			&sqlitex.ExecOptions{Args: []any{key, value}},
		)
		if err != nil {
			return fmt.Errorf("tilestate: save %s: %w", key, err)
		}
	}
	return nil
}

// stateFromValues maps raw key/value rows to clock state. Shared with
// Memory so both stores interpret missing keys identically.
func stateFromValues(values map[string]int64) tileclock.State {
	state := tileclock.State{
		Epoch:        int(values[keyClock]),
		LastRealtime: tileclock.NeverRecorded,
	}
	if realtime, ok := values[keyLastRealtime]; ok {
		state.LastRealtime = time.Duration(realtime) * time.Millisecond
	}
	if serverTime := values[keyLastUploadAbsTime]; serverTime > 0 {
		state.Anchor = tileclock.Anchor{
			ServerTime: tiles.MillisTime(serverTime),
			Realtime:   time.Duration(values[keyLastUploadRealtime]) * time.Millisecond,
			Epoch:      int(values[keyLastUploadClock]),
		}
	}
	return state
}
