// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestReportFormatsWrappedErrors(t *testing.T) {
	var buffer bytes.Buffer
	report(&buffer, fmt.Errorf("invalid configuration: %w", errors.New("upload.url is required")))
	if got, want := buffer.String(), "error: invalid configuration: upload.url is required\n"; got != want {
		t.Errorf("report = %q, want %q", got, want)
	}
}

func TestFatalExitsNonZero(t *testing.T) {
	saved := exit
	t.Cleanup(func() { exit = saved })

	code := -1
	exit = func(c int) { code = c }
	Fatal(errors.New("boom"))
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}
