// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tileupload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/tiles/lib/schema/tiles"
)

// State is a stage of an upload cycle. Idle, Draining, and Uploading
// are observable while a cycle runs; Success, Failed, and Skipped are
// outcomes.
type State int

const (
	Idle State = iota
	Draining
	Uploading
	Success
	Failed
	Skipped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Draining:
		return "draining"
	case Uploading:
		return "uploading"
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText lets State appear by name in JSON status output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of one cycle.
type Result struct {
	State State

	// Uploaded is true when the queue's contents at drain time are no
	// longer pending: either they were accepted or there were none.
	Uploaded bool

	// Sent is the number of events in the accepted or rejected batch.
	Sent int

	// Discarded is the number of events dropped because their kind
	// could not be serialized.
	Discarded int

	// Digest is the batch digest sent with the request, empty when
	// nothing was sent.
	Digest string

	// ServerTime is the collector's Date, zero if absent or on
	// failure.
	ServerTime time.Time

	// Err is the failure cause when State is Failed.
	Err error
}

// Queue is the part of the event queue a cycle uses.
// *tilequeue.Queue implements it.
type Queue interface {
	DrainAll() []tiles.Event
	Restore(batch []tiles.Event)
	Pending() []tiles.Event
}

// ClockModel is the part of the clock model a cycle uses.
// *tileclock.Model implements it.
type ClockModel interface {
	CurrentBootEpoch() int
	Now() time.Duration
	Checkpoint(ctx context.Context) (time.Duration, error)
	Recalibrate(ctx context.Context, serverTime time.Time, now time.Duration) error
}

// Spool receives the events still queued after a successful upload,
// so the durable copy never lists events the collector already has.
type Spool interface {
	SaveSpool(ctx context.Context, events []tiles.Event) error
}

// Config holds the coordinator's collaborators and policy.
type Config struct {
	Queue  Queue
	Clock  ClockModel
	Sender Sender

	// Spool is optional. When nil nothing is rewritten after uploads.
	Spool Spool

	// Reachable gates each attempt. If nil, InterfaceReachability is
	// used.
	Reachable Reachability

	// Backoff delays scheduled cycles after consecutive failures.
	Backoff Backoff

	// Debug turns serialization contract violations into panics.
	Debug bool

	// Logger receives cycle outcomes. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Stats summarizes the coordinator's history.
type Stats struct {
	Succeeded           uint64 `json:"succeeded"`
	Failed              uint64 `json:"failed"`
	Skipped             uint64 `json:"skipped"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastState           State  `json:"last_state"`
	LastError           string `json:"last_error,omitempty"`
	LastDigest          string `json:"last_digest,omitempty"`
}

// Coordinator runs upload cycles. Safe for concurrent use; at most one
// cycle runs at a time and overlapping triggers are skipped.
type Coordinator struct {
	queue     Queue
	clock     ClockModel
	sender    Sender
	spool     Spool
	reachable Reachability
	backoff   Backoff
	debug     bool
	logger    *slog.Logger

	inFlight atomic.Bool
	state    atomic.Int32

	mu           sync.Mutex
	stats        Stats
	backoffUntil time.Duration
}

// New validates cfg and returns an idle coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Queue == nil {
		return nil, errors.New("tileupload: Queue is required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("tileupload: Clock is required")
	}
	if cfg.Sender == nil {
		return nil, errors.New("tileupload: Sender is required")
	}
	reachable := cfg.Reachable
	if reachable == nil {
		reachable = InterfaceReachability
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		queue:     cfg.Queue,
		clock:     cfg.Clock,
		sender:    cfg.Sender,
		spool:     cfg.Spool,
		reachable: reachable,
		backoff:   cfg.Backoff,
		debug:     cfg.Debug,
		logger:    logger,
	}, nil
}

// State returns the stage of the running cycle, or Idle.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Stats returns a snapshot of the coordinator's history.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// RunScheduledCycle is RunUploadCycle for periodic triggers: while a
// failure backoff is in effect it returns Skipped without draining.
func (c *Coordinator) RunScheduledCycle(ctx context.Context) Result {
	if c.backoff.Enabled() {
		c.mu.Lock()
		until := c.backoffUntil
		c.mu.Unlock()
		if now := c.clock.Now(); now < until {
			c.logger.Debug("upload deferred by backoff", "remaining", until-now)
			return c.record(Result{State: Skipped})
		}
	}
	return c.RunUploadCycle(ctx)
}

// RunUploadCycle drains the queue and uploads it. See the package
// documentation for the cycle.
func (c *Coordinator) RunUploadCycle(ctx context.Context) Result {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.logger.Debug("upload cycle already in flight, skipping trigger")
		return c.record(Result{State: Skipped})
	}
	defer c.inFlight.Store(false)
	defer c.state.Store(int32(Idle))

	return c.record(c.runCycle(ctx))
}

func (c *Coordinator) runCycle(ctx context.Context) Result {
	c.state.Store(int32(Draining))

	realtime, err := c.clock.Checkpoint(ctx)
	if err != nil {
		// The reading is still usable for this cycle; only the next
		// process's reboot check loses precision.
		c.logger.Warn("checkpointing boot clock failed", "error", err)
	}

	batch := c.queue.DrainAll()
	if len(batch) == 0 {
		return Result{State: Success, Uploaded: true}
	}

	if !c.reachable() {
		c.queue.Restore(batch)
		return Result{State: Failed, Sent: len(batch), Err: &UnreachableError{}}
	}

	body, kept, discarded, err := c.serialize(realtime, batch)
	if err != nil {
		c.queue.Restore(kept)
		return Result{State: Failed, Sent: len(kept), Discarded: discarded, Err: err}
	}
	if len(kept) == 0 {
		return Result{State: Success, Uploaded: true, Discarded: discarded}
	}

	c.state.Store(int32(Uploading))
	digest := BatchDigest(body)
	receipt, err := c.sender.Send(ctx, body)
	if err != nil {
		c.queue.Restore(kept)
		var transport *UploadTransportError
		if !errors.As(err, &transport) {
			err = &UploadTransportError{Err: err}
		}
		return Result{State: Failed, Sent: len(kept), Discarded: discarded, Digest: digest, Err: err}
	}

	result := Result{State: Success, Uploaded: true, Sent: len(kept), Discarded: discarded, Digest: digest}
	c.recalibrate(ctx, receipt, &result)
	c.rewriteSpool(ctx)
	return result
}

// serialize builds the upload envelope. Events whose kind cannot be
// serialized are dropped (or panic in debug mode); kept holds the
// events that made it into body.
func (c *Coordinator) serialize(realtime time.Duration, batch []tiles.Event) ([]byte, []tiles.Event, int, error) {
	kept := make([]tiles.Event, 0, len(batch))
	entries := make([]tiles.Entry, 0, len(batch))
	discarded := 0
	for _, event := range batch {
		if !event.Kind.IsKnown() {
			unknown := &tiles.UnknownEventKindError{Kind: event.Kind}
			if c.debug {
				panic(unknown)
			}
			c.logger.Error("dropping event with unknown kind",
				"kind", event.Kind,
				"realtime", event.Realtime,
			)
			discarded++
			continue
		}
		kept = append(kept, event)
		entries = append(entries, event.Entry())
	}
	if len(kept) == 0 {
		return nil, nil, discarded, nil
	}

	payload := tiles.Payload{
		TS: tiles.TimeSync{
			Clock:    c.clock.CurrentBootEpoch(),
			Realtime: tiles.DurationMillis(realtime),
		},
		Batch: entries,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, kept, discarded, fmt.Errorf("tileupload: serializing batch: %w", err)
	}
	return body, kept, discarded, nil
}

func (c *Coordinator) recalibrate(ctx context.Context, receipt Receipt, result *Result) {
	if receipt.Date == "" {
		c.logger.Warn("collector response has no Date header, keeping previous anchor")
		return
	}
	serverTime, err := time.Parse(time.RFC1123, receipt.Date)
	if err != nil {
		c.logger.Warn("collector Date header unparseable, keeping previous anchor",
			"date", receipt.Date,
			"error", err,
		)
		return
	}
	result.ServerTime = serverTime
	if err := c.clock.Recalibrate(ctx, serverTime, c.clock.Now()); err != nil {
		c.logger.Warn("recalibrating clock model failed", "server_time", serverTime, "error", err)
	}
}

func (c *Coordinator) rewriteSpool(ctx context.Context) {
	if c.spool == nil {
		return
	}
	if err := c.spool.SaveSpool(ctx, c.queue.Pending()); err != nil {
		c.logger.Warn("rewriting spool after upload failed", "error", err)
	}
}

// record logs the outcome and folds it into Stats and the backoff.
func (c *Coordinator) record(result Result) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.LastState = result.State
	switch result.State {
	case Success:
		c.stats.Succeeded++
		c.stats.ConsecutiveFailures = 0
		c.stats.LastError = ""
		c.backoffUntil = 0
		if result.Digest != "" {
			c.stats.LastDigest = result.Digest
		}
		if result.Sent > 0 {
			c.logger.Info("tile events uploaded",
				"events", result.Sent,
				"discarded", result.Discarded,
				"digest", result.Digest,
				"server_time", result.ServerTime,
			)
		}
	case Failed:
		c.stats.Failed++
		c.stats.ConsecutiveFailures++
		c.stats.LastError = result.Err.Error()
		if c.backoff.Enabled() {
			delay := c.backoff.Delay(c.stats.ConsecutiveFailures)
			c.backoffUntil = c.clock.Now() + delay
			c.logger.Warn("tile upload failed, batch restored",
				"events", result.Sent,
				"consecutive_failures", c.stats.ConsecutiveFailures,
				"retry_after", delay,
				"error", result.Err,
			)
		} else {
			c.logger.Warn("tile upload failed, batch restored",
				"events", result.Sent,
				"consecutive_failures", c.stats.ConsecutiveFailures,
				"error", result.Err,
			)
		}
	case Skipped:
		c.stats.Skipped++
	}
	return result
}
