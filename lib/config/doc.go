// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the tiles
// relay.
//
// Configuration is loaded from a single file specified by either the
// TILES_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production is stricter by default:
// debug checks are off and failed uploads back off.
//
// Variable expansion is performed on path and URL fields after
// loading: ${HOME}, ${TILES_STATE_DIR}, and ${VAR:-default} patterns
// are expanded.
//
// Key exports:
//
//   - [Config] -- master struct with State, Upload, Queue, Listen
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
