// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package clock

import "time"

// processStart anchors the fallback boot clock. Without a portable boot
// clock every process start looks like a reboot, which only costs the
// pipeline its anchor: events are then stamped with the minimum server
// time alone until the next successful upload.
var processStart = time.Now()

func sinceBoot() time.Duration {
	return time.Since(processStart)
}
