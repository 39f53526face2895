// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tilestate

// LockedError means another open store, in this process or another,
// holds the state database.
type LockedError struct {
	Path string
}

func (e *LockedError) Error() string {
	return e.Path + " is held by another pipeline"
}

// lockPath is the advisory lock file guarding a database.
func lockPath(databasePath string) string {
	return databasePath + ".lock"
}
