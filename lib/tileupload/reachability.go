// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tileupload

import "net"

// Reachability reports whether an upload is worth attempting.
type Reachability func() bool

// Always is a Reachability that never blocks an upload.
func Always() bool { return true }

// InterfaceReachability reports whether any network interface other
// than loopback is up. It is a cheap local check: a true result does
// not guarantee the collector is reachable, only that a request could
// leave the host.
func InterfaceReachability() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		return true
	}
	return false
}
