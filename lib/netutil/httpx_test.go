// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"fmt"
	"testing"
)

func TestErrorBody(t *testing.T) {
	t.Run("short body returned whole", func(t *testing.T) {
		got := ErrorBody(bytes.NewReader([]byte(`collector overloaded`)), 64)
		if got != `collector overloaded` {
			t.Fatalf("got %q, want %q", got, `collector overloaded`)
		}
	})

	t.Run("long body truncated", func(t *testing.T) {
		got := ErrorBody(bytes.NewReader(bytes.Repeat([]byte("x"), 100)), 10)
		if got != "xxxxxxxxxx..." {
			t.Fatalf("got %q, want 10 bytes and an ellipsis", got)
		}
	})

	t.Run("body exactly at limit", func(t *testing.T) {
		if got := ErrorBody(bytes.NewReader([]byte("abcde")), 5); got != "abcde" {
			t.Fatalf("got %q, want %q", got, "abcde")
		}
	})

	t.Run("read error returns empty", func(t *testing.T) {
		if got := ErrorBody(&failReader{}, 64); got != "" {
			t.Fatalf("expected empty from failing reader, got %q", got)
		}
	})
}

func TestDrainConsumesBody(t *testing.T) {
	reader := bytes.NewReader([]byte(`{"ok":true}`))
	Drain(reader)
	if reader.Len() != 0 {
		t.Fatalf("%d bytes left unread", reader.Len())
	}
}

// failReader always returns an error on Read.
type failReader struct{}

func (*failReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("simulated read failure")
}
