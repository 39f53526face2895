// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// recordingT captures Fatalf instead of stopping the test.
type recordingT struct {
	message string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Fatalf(format string, args ...any) {
	r.message = fmt.Sprintf(format, args...)
	panic(r)
}

func capture(fn func(t T)) (message string) {
	recorder := &recordingT{}
	defer func() {
		if recovered := recover(); recovered != nil && recovered != recorder {
			panic(recovered)
		}
		message = recorder.message
	}()
	fn(recorder)
	return ""
}

func TestRequireReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second, "buffered value"); got != 7 {
		t.Fatalf("RequireReceive = %d, want 7", got)
	}

	closed := make(chan int)
	close(closed)
	message := capture(func(t T) { RequireReceive(t, closed, time.Second, "cycle %d", 3) })
	if !strings.Contains(message, "channel closed") || !strings.Contains(message, "cycle 3") {
		t.Errorf("closed channel message = %q", message)
	}

	message = capture(func(t T) { RequireReceive(t, make(chan int), time.Millisecond) })
	if !strings.Contains(message, "timed out") || !strings.Contains(message, "(no message)") {
		t.Errorf("timeout message = %q", message)
	}
}

func TestRequireClosed(t *testing.T) {
	done := make(chan struct{})
	close(done)
	RequireClosed(t, done, time.Second, "closed channel")

	message := capture(func(t T) { RequireClosed(t, make(chan struct{}), time.Millisecond, "scheduler exit") })
	if !strings.Contains(message, "scheduler exit") {
		t.Errorf("timeout message = %q", message)
	}
}
