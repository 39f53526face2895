// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint helper for tiles binaries.
// main() calls run() and hands any error to [Fatal], which writes to
// stderr directly because the structured logger may not exist yet:
// configuration is loaded before the logger is built.
package process
