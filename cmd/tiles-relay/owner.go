// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"sync"

	"github.com/bureau-foundation/tiles/lib/tiles"
)

// owner runs every Recorder call on one goroutine. HTTP handlers run
// on arbitrary goroutines, and a debug-mode Recorder rejects calls
// from any goroutine but the first caller.
type owner struct {
	recorder *tiles.Recorder
	calls    chan func()

	stopOnce sync.Once
	stopping chan struct{}
	done     chan struct{}
}

func newOwner(recorder *tiles.Recorder) *owner {
	return &owner{
		recorder: recorder,
		calls:    make(chan func()),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// run executes submitted calls until stop. It must run on exactly one
// goroutine.
func (o *owner) run() {
	defer close(o.done)
	for {
		select {
		case call := <-o.calls:
			call()
		case <-o.stopping:
			return
		}
	}
}

// do runs fn on the owner goroutine and returns its error. Returns
// tiles.ErrShutdown once the owner has stopped.
func (o *owner) do(ctx context.Context, fn func(*tiles.Recorder) error) error {
	result := make(chan error, 1)
	call := func() { result <- fn(o.recorder) }

	select {
	case o.calls <- call:
	case <-o.done:
		return tiles.ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shutdown shuts the recorder down on the owner goroutine and then
// stops the owner.
func (o *owner) shutdown(ctx context.Context) error {
	err := o.do(ctx, func(recorder *tiles.Recorder) error {
		return recorder.Shutdown(ctx)
	})
	o.stopOnce.Do(func() { close(o.stopping) })
	<-o.done
	return err
}
