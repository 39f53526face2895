// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

// sinceBoot reads CLOCK_BOOTTIME. Unlike CLOCK_MONOTONIC it keeps
// running while the machine is suspended, so readings taken on either
// side of a suspend stay comparable.
func sinceBoot() time.Duration {
	var spec unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &spec); err != nil {
		// CLOCK_BOOTTIME exists on every kernel since 2.6.39.
		panic("clock: CLOCK_BOOTTIME unavailable: " + err.Error())
	}
	return time.Duration(spec.Nano())
}
