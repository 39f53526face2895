// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for tiles packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so individual tests never call time.After themselves. They
// are the only real wall-clock timeouts in the test suite; everything
// else runs on lib/clock's fake clock.
//
// [StatePath] returns a fresh SQLite database path for a test.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
