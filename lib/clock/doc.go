// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time sources used by the tiles
// pipeline.
//
// Two kinds of time matter here and they must never be confused:
//
//   - Wall time (Now, NewTicker) drives scheduling. It is used
//     only to decide when something should happen, never recorded as
//     the time an event occurred, because the device wall clock can be
//     wrong or changed by the user at any moment.
//   - Boot time (SinceBoot) is a monotonic reading that increases
//     continuously from the last boot, keeps counting through suspend,
//     and resets to near zero on reboot. Event timestamps are built on
//     it; see lib/tileclock for how it is anchored to server time.
//
// Production code injects Real(). Tests inject Fake(), which advances
// both readings only when Advance is called and can simulate a reboot
// with Reboot.
//
// # FakeClock Synchronization
//
// A goroutine that calls NewTicker on a FakeClock registers a
// pending waiter. Tests call WaitForTimers before Advance so the
// registration is guaranteed to have happened:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go scheduler.Run(ctx)
//	c.WaitForTimers(1)
//	c.Advance(time.Hour)
package clock
