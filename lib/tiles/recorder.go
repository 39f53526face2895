// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	tileschema "github.com/bureau-foundation/tiles/lib/schema/tiles"
	"github.com/bureau-foundation/tiles/lib/tilequeue"
)

// ErrShutdown is returned by Recorder calls after Shutdown.
var ErrShutdown = errors.New("tiles: recorder is shut down")

// Recorder is the producer surface of a pipeline. Obtain one from
// [Pipeline.Recorder].
type Recorder struct {
	queue    *tilequeue.Queue
	spool    Spool
	pipeline *Pipeline
	debug    bool
	logger   *slog.Logger
	affinity affinity
}

// RecordAction records a click, pin, or unpin on the tile at index.
// Any other kind, including view, is rejected with
// *tileschema.InvalidEventError.
func (r *Recorder) RecordAction(kind tileschema.EventKind, index int, snapshot json.RawMessage) error {
	release, err := r.enter("RecordAction")
	if err != nil {
		return err
	}
	defer release()
	if !kind.IsAction() {
		return &tileschema.InvalidEventError{
			Kind:   kind,
			Index:  tileschema.At(index),
			Reason: "not an action kind",
		}
	}
	event, err := r.queue.Insert(kind, tileschema.At(index), snapshot)
	if err != nil {
		return err
	}
	r.logger.Debug("tile action recorded",
		"kind", event.Kind,
		"index", index,
		"epoch", event.Epoch,
		"realtime", event.Realtime,
	)
	return nil
}

// RecordView records the tiles being shown.
func (r *Recorder) RecordView(snapshot json.RawMessage) error {
	release, err := r.enter("RecordView")
	if err != nil {
		return err
	}
	defer release()
	event, err := r.queue.Insert(tileschema.KindView, tileschema.NoIndex, snapshot)
	if err != nil {
		return err
	}
	r.logger.Debug("tile view recorded",
		"epoch", event.Epoch,
		"realtime", event.Realtime,
	)
	return nil
}

// Flush writes everything currently queued to the spool, replacing
// the previous spool contents. The queue itself is unchanged.
func (r *Recorder) Flush(ctx context.Context) error {
	release, err := r.enter("Flush")
	if err != nil {
		return err
	}
	defer release()
	return r.flush(ctx)
}

func (r *Recorder) flush(ctx context.Context) error {
	pending := r.queue.Pending()
	if err := r.spool.SaveSpool(ctx, pending); err != nil {
		return fmt.Errorf("tiles: flushing %d events: %w", len(pending), err)
	}
	r.logger.Debug("tile events flushed", "events", len(pending))
	return nil
}

// Shutdown stops the scheduler, flushes, runs one final upload cycle,
// and closes the state store. See [Pipeline.Close] for retries.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r.debug {
		if err := r.affinity.check("Shutdown"); err != nil {
			return err
		}
	}
	return r.pipeline.Close(ctx)
}

// enter checks affinity and admits the call against Close. The caller
// must run release once it is done with the queue.
func (r *Recorder) enter(operation string) (release func(), err error) {
	if r.debug {
		if err := r.affinity.check(operation); err != nil {
			return nil, err
		}
	}
	r.pipeline.admit.RLock()
	if r.pipeline.closed {
		r.pipeline.admit.RUnlock()
		return nil, ErrShutdown
	}
	return r.pipeline.admit.RUnlock, nil
}
