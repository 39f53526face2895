// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tileclock estimates absolute server time on a device whose
// wall clock cannot be trusted.
//
// The only trusted local time is the boot clock (clock.Clock.SinceBoot):
// monotonic within one boot, reset on restart. The model ties it to
// server time through three pieces of persisted state:
//
//   - The boot epoch, a counter incremented once per inferred reboot.
//     Reboots are not signaled; they are inferred at startup when the
//     boot clock reads less than the last reading persisted by a
//     previous process (see [DetectReboot]).
//   - The anchor: the server time reported by the last successful
//     upload, the boot-clock reading at that moment, and the epoch it
//     was taken in.
//   - The last boot-clock reading, refreshed by [Model.Checkpoint] so
//     the next process can detect a reboot.
//
// From these the model answers two questions for every recorded event.
// The minimum server time is the anchor's server time, valid across
// reboots because server time does not run backwards. The estimated
// server time extrapolates the anchor by elapsed boot time, and is only
// defined when the anchor was taken in the current epoch: a reading
// from before a reboot says nothing about readings after it.
package tileclock
