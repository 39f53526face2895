// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tiles

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/tiles/lib/clock"
	"github.com/bureau-foundation/tiles/lib/tileupload"
)

// CycleFunc runs one upload cycle.
type CycleFunc func(ctx context.Context) tileupload.Result

// Scheduler triggers upload cycles: once immediately, then every
// interval after that first cycle finishes. A tick that comes due while
// a cycle runs is delivered once the cycle returns; further ticks in
// that window are dropped.
type Scheduler struct {
	cycle    CycleFunc
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler returns a scheduler. interval must be positive.
func NewScheduler(cycle CycleFunc, source clock.Clock, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{cycle: cycle, clock: source, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("upload scheduler started", "interval", s.interval)
	s.trigger(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("upload scheduler stopped")
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	result := s.cycle(ctx)
	s.logger.Debug("scheduled upload cycle finished",
		"state", result.State,
		"events", result.Sent,
	)
}
