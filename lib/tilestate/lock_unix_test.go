// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package tilestate

import (
	"errors"
	"testing"

	"github.com/bureau-foundation/tiles/lib/testutil"
)

func TestSQLiteRejectsSecondOpenOfSamePath(t *testing.T) {
	path := testutil.StatePath(t)
	db, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	second, err := Open(Config{Path: path})
	var locked *LockedError
	if !errors.As(err, &locked) {
		if second != nil {
			second.Close()
		}
		db.Close()
		t.Fatalf("second Open = %v, want *LockedError", err)
	}
	if locked.Path != lockPath(path) {
		t.Errorf("LockedError.Path = %q, want %q", locked.Path, lockPath(path))
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	openTestDB(t, path)
}
