// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tilestate persists the tiles pipeline's local state in a
// single SQLite database opened through lib/sqlitepool.
//
// Two tables live in the database:
//
//   - state: a small key/value table holding the clock model's
//     persisted values (boot epoch, last boot-clock reading, and the
//     anchor). [SQLite] implements tileclock.Store on top of it.
//   - spool: at most one row holding the events that were queued at
//     the last flush, CBOR-encoded (lib/codec) and LZ4-compressed. The
//     spool is the durability side of the pipeline; the in-memory
//     queue stays the source of truth while the process is alive.
//
// [Memory] provides the same two roles without a database, for tests
// and for processes that run with persistence disabled.
package tilestate
