// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool behind the
// tiles state store.
//
// It wraps zombiezen.com/go/sqlite with defaults for a small, local,
// write-mostly database: a handful of clock keys and one spool row
// rewritten on every flush. Callers [Pool.Take] a connection, perform
// work, and [Pool.Put] it back. Connections are not safe for
// concurrent use.
//
// # Pragmas
//
// Every connection is initialized with:
//
//   - journal_mode=WAL: readers (status, spool load) never block the
//     writer.
//   - synchronous: NORMAL by default, which survives a process crash.
//     [Config.Durable] selects FULL, which also survives power loss at
//     the cost of an fsync per commit. The spool is the only copy of
//     unsent events, so devices that lose power without warning
//     should set it.
//   - busy_timeout=5000: wait up to 5 seconds for the write lock.
//   - cache_size=-2048: 2 MB page cache per connection.
//   - temp_store=MEMORY.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:     statePath,
//	    PoolSize: 2,
//	    Logger:   logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
// Callers write SQL directly with sqlitex.Execute and manage
// transactions with sqlitex.ImmediateTransaction.
package sqlitepool
