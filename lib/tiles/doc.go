// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tiles assembles the tile telemetry pipeline and exposes its
// producer surface.
//
// [Open] wires the pieces together: a state store (lib/tilestate), the
// clock model (lib/tileclock), the event queue (lib/tilequeue), the
// upload coordinator (lib/tileupload), and a [Scheduler] that runs an
// upload cycle immediately and then at a fixed interval. Producers use
// the returned pipeline's [Recorder]:
//
//	pipeline, err := tiles.Open(ctx, tiles.Config{...})
//	recorder := pipeline.Recorder()
//	err = recorder.RecordAction(tileschema.KindClick, 3, snapshot)
//	err = recorder.RecordView(snapshot)
//	err = recorder.Flush(ctx)
//	err = recorder.Shutdown(ctx)
//
// Recording never performs I/O. [Recorder.Flush] is the durability
// hook: it writes the queue's current contents to the spool so a
// process restart can pick them up again.
//
// In debug mode the Recorder is bound to the goroutine that first
// calls it; calls from any other goroutine fail with [AffinityError].
// Hosts that receive events on many goroutines (an HTTP server, for
// instance) funnel them through a single owner goroutine.
package tiles
