// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockAdvanceMovesBothClocks(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.SinceBoot(); got != 0 {
		t.Fatalf("SinceBoot() = %v, want 0", got)
	}

	clock.Advance(5 * time.Second)

	if got, want := clock.Now(), epoch.Add(5*time.Second); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
	if got := clock.SinceBoot(); got != 5*time.Second {
		t.Fatalf("SinceBoot() = %v, want 5s", got)
	}
}

func TestFakeClockRebootResetsBootTimeOnly(t *testing.T) {
	clock := Fake(epoch)
	clock.Advance(time.Hour)

	clock.Reboot(2 * time.Second)

	if got := clock.SinceBoot(); got != 2*time.Second {
		t.Fatalf("SinceBoot() after Reboot = %v, want 2s", got)
	}
	if got, want := clock.Now(), epoch.Add(time.Hour); !got.Equal(want) {
		t.Fatalf("Now() after Reboot = %v, want %v (wall time unaffected)", got, want)
	}

	clock.Advance(time.Second)
	if got := clock.SinceBoot(); got != 3*time.Second {
		t.Fatalf("SinceBoot() after Advance = %v, want 3s", got)
	}
}

func TestFakeClockTickerFiresAtDeadline(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(3 * time.Second)
	defer ticker.Stop()

	clock.Advance(2 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("ticker fired before deadline")
	default:
	}

	clock.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire at deadline")
	}
}

func TestFakeClockTicker(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Minute)
	defer ticker.Stop()

	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d did not fire", i)
		}
	}
}

func TestFakeClockTickerDropsTicksWhenFull(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	clock.Advance(5 * time.Second)

	select {
	case <-ticker.C:
	default:
		t.Fatal("expected one tick")
	}
	select {
	case <-ticker.C:
		t.Fatal("expected buffered ticks to be dropped")
	default:
	}
}

func TestFakeClockTickerStop(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Second)

	ticker.Stop()
	clock.Advance(2 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
	if clock.PendingCount() != 0 {
		t.Fatalf("PendingCount after Stop = %d, want 0", clock.PendingCount())
	}
}

func TestFakeClockTickerPanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero interval")
		}
	}()
	Fake(epoch).NewTicker(0)
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	registered := make(chan struct{})
	fired := make(chan struct{})

	go func() {
		ticker := clock.NewTicker(time.Second)
		defer ticker.Stop()
		close(registered)
		<-ticker.C
		close(fired)
	}()

	clock.WaitForTimers(1)
	<-registered
	clock.Advance(time.Second)
	<-fired
}

func TestClockImplementations(t *testing.T) {
	var _ Clock = Fake(epoch)
	var _ Clock = Real()
}

func TestRealClockSinceBootIsMonotonic(t *testing.T) {
	clock := Real()
	first := clock.SinceBoot()
	second := clock.SinceBoot()
	if first <= 0 {
		t.Fatalf("SinceBoot() = %v, want positive", first)
	}
	if second < first {
		t.Fatalf("SinceBoot went backwards: %v then %v", first, second)
	}
}
