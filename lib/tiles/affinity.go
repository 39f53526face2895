// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tiles

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
)

// AffinityError reports a Recorder call from a goroutine other than
// the one the Recorder is bound to.
type AffinityError struct {
	Operation string
	Owner     uint64
	Caller    uint64
}

func (e *AffinityError) Error() string {
	return fmt.Sprintf("tiles: %s called from goroutine %d, recorder is bound to goroutine %d",
		e.Operation, e.Caller, e.Owner)
}

// affinity binds to the first goroutine that calls check. The zero
// value is unbound.
type affinity struct {
	owner atomic.Uint64
}

func (a *affinity) check(operation string) error {
	caller := goroutineID()
	if caller == 0 {
		return nil
	}
	if a.owner.CompareAndSwap(0, caller) {
		return nil
	}
	if owner := a.owner.Load(); owner != caller {
		return &AffinityError{Operation: operation, Owner: owner, Caller: caller}
	}
	return nil
}

// goroutineID parses the current goroutine's ID from the first line of
// its stack trace ("goroutine 17 [running]:"). Returns 0 if the format
// is not recognized. Only used in debug mode.
func goroutineID() uint64 {
	var buffer [64]byte
	n := runtime.Stack(buffer[:], false)
	line := bytes.TrimPrefix(buffer[:n], []byte("goroutine "))
	end := bytes.IndexByte(line, ' ')
	if end <= 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(line[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
