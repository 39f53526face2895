// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package tilestate

import (
	"fmt"
	"os"
)

// acquireLock only creates the lock file. There is no flock here, so a
// second pipeline on the same database is not detected.
func acquireLock(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	return file, nil
}
