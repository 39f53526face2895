// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"bytes"
	"strings"
	"testing"
)

func TestInfoMarksDirtyBuilds(t *testing.T) {
	savedCommit, savedDirty, savedTime := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() { GitCommit, GitDirty, BuildTime = savedCommit, savedDirty, savedTime })

	GitCommit, GitDirty, BuildTime = "abc1234", "false", "2026-03-01T09:00:00Z"
	if got, want := Info(), Version+" (abc1234, 2026-03-01T09:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want dirty marker", got)
	}
}

func TestPrint(t *testing.T) {
	var buffer bytes.Buffer
	Print(&buffer, "tiles-relay")
	output := buffer.String()
	if !strings.HasPrefix(output, "tiles-relay "+Info()) {
		t.Errorf("Print output = %q, want prefix %q", output, "tiles-relay "+Info())
	}
	if !strings.Contains(output, "Platform: ") || !strings.HasSuffix(output, "\n") {
		t.Errorf("Print output = %q, want Full() with trailing newline", output)
	}
}
