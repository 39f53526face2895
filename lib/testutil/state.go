// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"path/filepath"
	"testing"
)

// StatePath returns a path for a SQLite state database inside a
// per-test temporary directory. The file does not exist yet.
func StatePath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "tiles.db")
}
