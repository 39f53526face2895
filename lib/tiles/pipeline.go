// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/tiles/lib/clock"
	tileschema "github.com/bureau-foundation/tiles/lib/schema/tiles"
	"github.com/bureau-foundation/tiles/lib/tileclock"
	"github.com/bureau-foundation/tiles/lib/tilequeue"
	"github.com/bureau-foundation/tiles/lib/tilestate"
	"github.com/bureau-foundation/tiles/lib/tileupload"
)

// Spool is the durable copy of the queue.
type Spool interface {
	SaveSpool(ctx context.Context, events []tileschema.Event) error
	LoadSpool(ctx context.Context) ([]tileschema.Event, error)
}

// Store is everything the pipeline persists. *tilestate.SQLite and
// *tilestate.Memory implement it.
type Store interface {
	tileclock.Store
	Spool
	Close() error
}

// Config configures a pipeline.
type Config struct {
	// Store overrides the state store. When nil, StatePath selects a
	// SQLite database, or an in-memory store if StatePath is empty.
	Store Store

	// StatePath is the SQLite database path.
	StatePath string

	// Durable fsyncs every state commit. See sqlitepool.Config.
	Durable bool

	// Upload configures the HTTP sender. Ignored when Sender is set.
	Upload tileupload.HTTPConfig

	// Sender overrides the HTTP sender.
	Sender tileupload.Sender

	// Interval is the time between scheduled upload cycles. Zero means
	// one hour.
	Interval time.Duration

	// Backoff delays scheduled cycles after consecutive failures.
	Backoff tileupload.Backoff

	// MaxEvents caps the queue; zero means unbounded.
	MaxEvents int

	// Reachable gates uploads. If nil, the host's network interfaces
	// are checked.
	Reachable tileupload.Reachability

	// Clock is the time source. If nil, the real clock is used.
	Clock clock.Clock

	// Debug enables goroutine affinity checks and turns
	// serialization contract violations into panics.
	Debug bool

	// Logger receives pipeline messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// DefaultInterval is the upload interval when Config.Interval is zero.
const DefaultInterval = time.Hour

// Pipeline owns every component of a running tile telemetry pipeline.
type Pipeline struct {
	store       Store
	model       *tileclock.Model
	queue       *tilequeue.Queue
	coordinator *tileupload.Coordinator
	recorder    *Recorder
	logger      *slog.Logger

	cancelScheduler context.CancelFunc
	schedulerDone   chan struct{}

	// admit is read-held by every Recorder call that touches the queue
	// and write-held while Close marks the pipeline closed, so nothing
	// is queued after the final flush.
	admit  sync.RWMutex
	closed bool

	// closeMu serializes Close. finished is set once the shutdown
	// sequence has run to completion.
	closeMu  sync.Mutex
	finished bool
	closeErr error
}

// Open assembles a pipeline and starts its scheduler. Events left in
// the spool by a previous process are queued ahead of anything new.
func Open(ctx context.Context, cfg Config) (*Pipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	source := cfg.Clock
	if source == nil {
		source = clock.Real()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	pipeline, err := assemble(ctx, cfg, store, source, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	schedulerContext, cancel := context.WithCancel(context.Background())
	pipeline.cancelScheduler = cancel
	pipeline.schedulerDone = make(chan struct{})
	scheduler := NewScheduler(pipeline.coordinator.RunScheduledCycle, source, interval, logger)
	go func() {
		defer close(pipeline.schedulerDone)
		scheduler.Run(schedulerContext)
	}()

	return pipeline, nil
}

func openStore(cfg Config, logger *slog.Logger) (Store, error) {
	if cfg.Store != nil {
		return cfg.Store, nil
	}
	if cfg.StatePath == "" {
		logger.Warn("no state path configured, pipeline state will not survive restarts")
		return tilestate.NewMemory(), nil
	}
	store, err := tilestate.Open(tilestate.Config{Path: cfg.StatePath, Durable: cfg.Durable, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("tiles: opening state store: %w", err)
	}
	return store, nil
}

func assemble(ctx context.Context, cfg Config, store Store, source clock.Clock, logger *slog.Logger) (*Pipeline, error) {
	model, err := tileclock.Open(ctx, store, source, logger)
	if err != nil {
		return nil, fmt.Errorf("tiles: %w", err)
	}

	queue := tilequeue.New(model, tilequeue.Config{MaxEvents: cfg.MaxEvents, Logger: logger})
	spooled, err := store.LoadSpool(ctx)
	if err != nil {
		return nil, fmt.Errorf("tiles: loading spool: %w", err)
	}
	if len(spooled) > 0 {
		queue.Restore(spooled)
		logger.Info("restored spooled tile events", "events", len(spooled))
	}

	sender := cfg.Sender
	if sender == nil {
		upload := cfg.Upload
		if upload.Logger == nil {
			upload.Logger = logger
		}
		sender, err = tileupload.NewHTTPSender(upload)
		if err != nil {
			return nil, fmt.Errorf("tiles: %w", err)
		}
	}

	coordinator, err := tileupload.New(tileupload.Config{
		Queue:     queue,
		Clock:     model,
		Sender:    sender,
		Spool:     store,
		Reachable: cfg.Reachable,
		Backoff:   cfg.Backoff,
		Debug:     cfg.Debug,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("tiles: %w", err)
	}

	pipeline := &Pipeline{
		store:       store,
		model:       model,
		queue:       queue,
		coordinator: coordinator,
		logger:      logger,
	}
	pipeline.recorder = &Recorder{
		queue:    queue,
		spool:    store,
		pipeline: pipeline,
		debug:    cfg.Debug,
		logger:   logger,
	}
	return pipeline, nil
}

// Recorder returns the pipeline's producer surface.
func (p *Pipeline) Recorder() *Recorder {
	return p.recorder
}

// Upload runs an upload cycle now, outside the schedule and ignoring
// any backoff.
func (p *Pipeline) Upload(ctx context.Context) tileupload.Result {
	return p.coordinator.RunUploadCycle(ctx)
}

// Status is a point-in-time summary of the pipeline.
type Status struct {
	Epoch            int              `json:"epoch"`
	QueueLength      int              `json:"queue_length"`
	Dropped          uint64           `json:"dropped"`
	State            tileupload.State `json:"state"`
	Upload           tileupload.Stats `json:"upload"`
	AnchorServerTime time.Time        `json:"anchor_server_time,omitzero"`
	AnchorEpoch      int              `json:"anchor_epoch,omitempty"`
	Closed           bool             `json:"closed"`
}

// Status reports the pipeline's current state.
func (p *Pipeline) Status() Status {
	p.admit.RLock()
	closed := p.closed
	p.admit.RUnlock()

	anchor := p.model.Anchor()
	return Status{
		Epoch:            p.model.CurrentBootEpoch(),
		QueueLength:      p.queue.Len(),
		Dropped:          p.queue.Dropped(),
		State:            p.coordinator.State(),
		Upload:           p.coordinator.Stats(),
		AnchorServerTime: anchor.ServerTime,
		AnchorEpoch:      anchor.Epoch,
		Closed:           closed,
	}
}

// Close stops the scheduler, flushes the queue, attempts a final
// upload, and closes the store. If ctx ends before the scheduler's
// in-flight cycle returns, Close reports the context error and leaves
// the flush for a later call. Once the sequence has run, further calls
// return its result.
func (p *Pipeline) Close(ctx context.Context) error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.finished {
		return p.closeErr
	}

	p.admit.Lock()
	p.closed = true
	p.admit.Unlock()

	p.cancelScheduler()
	select {
	case <-p.schedulerDone:
	case <-ctx.Done():
		return fmt.Errorf("tiles: waiting for scheduler: %w", ctx.Err())
	}

	var errs []error
	if err := p.recorder.flush(ctx); err != nil {
		errs = append(errs, err)
	}
	result := p.coordinator.RunUploadCycle(ctx)
	p.logger.Info("final tile upload",
		"state", result.State,
		"events", result.Sent,
		"remaining", p.queue.Len(),
	)
	if err := p.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("tiles: closing store: %w", err))
	}
	p.finished = true
	p.closeErr = errors.Join(errs...)
	return p.closeErr
}
