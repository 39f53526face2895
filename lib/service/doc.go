// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the process-level plumbing shared by tiles
// binaries.
//
// [HTTPServer] owns a TCP listener's lifecycle: [HTTPServer.Serve]
// binds, signals [HTTPServer.Ready], serves until its context is
// cancelled, and then drains in-flight requests within a bounded
// shutdown timeout. Binding with port 0 and reading [HTTPServer.Addr]
// after Ready lets tests run real servers without fixed ports.
//
// [NewLogger] builds the slog logger binaries use: a text handler when
// stderr is a terminal, JSON otherwise.
package service
