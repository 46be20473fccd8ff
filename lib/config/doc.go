// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for irdispatchd.
//
// Configuration is loaded from a single file specified by either the
// IRDISPATCHD_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search. This ensures deterministic,
// auditable configuration with no hidden overrides — a daemon that
// brokers between three trust domains should not guess at its own
// socket paths or permissions.
//
// Key exports:
//
//   - [Config] -- master struct with Endpoints, Tick, Wire, Pidfile, Logging
//   - [Default] -- returns a Config with the daemon's built-in defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- checks required fields and value ranges
//   - [Config.EnsureRunDirs] -- creates parent directories for sockets,
//     data fifos, and the pidfile
//
// This package depends on no other irdispatchd packages.
package config
