// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tileclock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/tiles/lib/clock"
	"github.com/bureau-foundation/tiles/lib/tileclock"
	"github.com/bureau-foundation/tiles/lib/tilestate"
)

var serverTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openModel(t *testing.T, store tileclock.Store, source clock.Clock) *tileclock.Model {
	t.Helper()
	model, err := tileclock.Open(context.Background(), store, source, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return model
}

func TestDetectReboot(t *testing.T) {
	tests := []struct {
		last, now time.Duration
		want      bool
	}{
		{last: 10 * time.Second, now: 11 * time.Second, want: false},
		{last: 10 * time.Second, now: 10 * time.Second, want: false},
		{last: 10 * time.Second, now: 2 * time.Second, want: true},
		{last: tileclock.NeverRecorded, now: time.Hour, want: true},
	}
	for _, test := range tests {
		if got := tileclock.DetectReboot(test.last, test.now); got != test.want {
			t.Errorf("DetectReboot(%v, %v) = %v, want %v", test.last, test.now, got, test.want)
		}
	}
}

func TestFirstStartBeginsEpochOne(t *testing.T) {
	store := tilestate.NewMemory()
	source := clock.Fake(serverTime)
	source.Advance(5 * time.Second)

	model := openModel(t, store, source)
	if model.CurrentBootEpoch() != 1 {
		t.Fatalf("CurrentBootEpoch = %d, want 1", model.CurrentBootEpoch())
	}
	if value, _ := store.Value("clock"); value != 1 {
		t.Errorf("persisted clock = %d, want 1", value)
	}
}

func TestEpochStableAcrossRestartsWithoutReboot(t *testing.T) {
	store := tilestate.NewMemory()
	source := clock.Fake(serverTime)
	source.Advance(5 * time.Second)

	first := openModel(t, store, source)

	// Several process restarts within the same boot session.
	for i := 0; i < 3; i++ {
		source.Advance(time.Minute)
		model := openModel(t, store, source)
		if model.CurrentBootEpoch() != first.CurrentBootEpoch() {
			t.Fatalf("restart %d: epoch = %d, want %d", i, model.CurrentBootEpoch(), first.CurrentBootEpoch())
		}
	}
}

func TestRebootAdvancesEpochOnce(t *testing.T) {
	store := tilestate.NewMemory()
	source := clock.Fake(serverTime)
	source.Advance(time.Hour)
	before := openModel(t, store, source).CurrentBootEpoch()

	source.Reboot(10 * time.Second)
	after := openModel(t, store, source)
	if after.CurrentBootEpoch() != before+1 {
		t.Fatalf("epoch after reboot = %d, want %d", after.CurrentBootEpoch(), before+1)
	}

	// Restarting again in the new session keeps the new epoch.
	source.Advance(time.Second)
	again := openModel(t, store, source)
	if again.CurrentBootEpoch() != before+1 {
		t.Fatalf("epoch after second start = %d, want %d", again.CurrentBootEpoch(), before+1)
	}
}

func TestCheckpointPreventsFalseReboot(t *testing.T) {
	store := tilestate.NewMemory()
	source := clock.Fake(serverTime)
	source.Advance(time.Second)
	model := openModel(t, store, source)

	source.Advance(time.Hour)
	now, err := model.Checkpoint(context.Background())
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if now != time.Hour+time.Second {
		t.Errorf("Checkpoint = %v, want 1h1s", now)
	}

	// A reading below the checkpoint means the device restarted, even
	// though it is above the reading seen at the first Open.
	source.Reboot(30 * time.Minute)
	if openModel(t, store, source).CurrentBootEpoch() != model.CurrentBootEpoch()+1 {
		t.Fatal("reboot below the checkpointed reading was not detected")
	}
}

func TestEstimateWithoutAnchor(t *testing.T) {
	source := clock.Fake(serverTime)
	model := openModel(t, tilestate.NewMemory(), source)

	if got := model.EstimateServerTime(model.Now()); !got.IsZero() {
		t.Errorf("EstimateServerTime = %v, want zero", got)
	}
	if got := model.MinimumServerTime(); !got.IsZero() {
		t.Errorf("MinimumServerTime = %v, want zero", got)
	}
}

func TestRecalibrateAndEstimate(t *testing.T) {
	source := clock.Fake(serverTime)
	source.Advance(10 * time.Second)
	model := openModel(t, tilestate.NewMemory(), source)

	if err := model.Recalibrate(context.Background(), serverTime, model.Now()); err != nil {
		t.Fatalf("Recalibrate: %v", err)
	}

	source.Advance(90 * time.Second)
	if got, want := model.EstimateServerTime(model.Now()), serverTime.Add(90*time.Second); !got.Equal(want) {
		t.Errorf("EstimateServerTime = %v, want %v", got, want)
	}
	if got := model.MinimumServerTime(); !got.Equal(serverTime) {
		t.Errorf("MinimumServerTime = %v, want %v", got, serverTime)
	}

	stamp := model.Stamp()
	if stamp.Epoch != model.CurrentBootEpoch() || stamp.Realtime != 100*time.Second {
		t.Errorf("Stamp = %+v", stamp)
	}
	if !stamp.Estimated.Equal(serverTime.Add(90*time.Second)) || !stamp.Minimum.Equal(serverTime) {
		t.Errorf("Stamp times = (%v, %v)", stamp.Estimated, stamp.Minimum)
	}
}

func TestEstimateBehindAnchorIsAbsent(t *testing.T) {
	source := clock.Fake(serverTime)
	source.Advance(time.Minute)
	model := openModel(t, tilestate.NewMemory(), source)

	if err := model.Recalibrate(context.Background(), serverTime, time.Minute); err != nil {
		t.Fatalf("Recalibrate: %v", err)
	}
	if got := model.EstimateServerTime(30 * time.Second); !got.IsZero() {
		t.Errorf("EstimateServerTime before anchor = %v, want zero", got)
	}
}

func TestAnchorFromEarlierEpochKeepsFloorOnly(t *testing.T) {
	ctx := context.Background()
	store := tilestate.NewMemory()
	source := clock.Fake(serverTime)
	source.Advance(time.Hour)

	model := openModel(t, store, source)
	if err := model.Recalibrate(ctx, serverTime, model.Now()); err != nil {
		t.Fatalf("Recalibrate: %v", err)
	}

	source.Reboot(5 * time.Second)
	rebooted := openModel(t, store, source)

	if got := rebooted.EstimateServerTime(rebooted.Now()); !got.IsZero() {
		t.Errorf("estimate across a reboot = %v, want zero", got)
	}
	if got := rebooted.MinimumServerTime(); !got.Equal(serverTime) {
		t.Errorf("MinimumServerTime = %v, want %v", got, serverTime)
	}
	anchor := rebooted.Anchor()
	if anchor.Epoch != model.CurrentBootEpoch() {
		t.Errorf("anchor epoch = %d, want %d", anchor.Epoch, model.CurrentBootEpoch())
	}
}

func TestRecalibrateRejectsInvalidTime(t *testing.T) {
	source := clock.Fake(serverTime)
	model := openModel(t, tilestate.NewMemory(), source)
	if err := model.Recalibrate(context.Background(), serverTime, 0); err != nil {
		t.Fatalf("Recalibrate: %v", err)
	}

	for _, invalid := range []time.Time{{}, time.Unix(0, 0), time.Unix(-100, 0)} {
		err := model.Recalibrate(context.Background(), invalid, time.Second)
		var invalidTime *tileclock.InvalidTimeError
		if !errors.As(err, &invalidTime) {
			t.Fatalf("Recalibrate(%v) = %v, want *InvalidTimeError", invalid, err)
		}
	}
	if got := model.MinimumServerTime(); !got.Equal(serverTime) {
		t.Errorf("anchor changed by invalid recalibration: %v", got)
	}
}

func TestRecalibrateKeepsAnchorWhenPersistFails(t *testing.T) {
	store := tilestate.NewMemory()
	source := clock.Fake(serverTime)
	model := openModel(t, store, source)

	failure := errors.New("disk full")
	store.FailSaves(failure)
	err := model.Recalibrate(context.Background(), serverTime, 0)
	if !errors.Is(err, failure) {
		t.Fatalf("Recalibrate = %v, want wrapped %v", err, failure)
	}
	if got := model.MinimumServerTime(); !got.Equal(serverTime) {
		t.Errorf("MinimumServerTime = %v, want %v", got, serverTime)
	}
}

func TestOpenPropagatesSaveFailure(t *testing.T) {
	store := tilestate.NewMemory()
	store.FailSaves(errors.New("read-only"))
	if _, err := tileclock.Open(context.Background(), store, clock.Fake(serverTime), nil); err == nil {
		t.Fatal("Open succeeded with a failing store")
	}
}
