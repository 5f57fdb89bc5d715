// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the
// clearinghouse binaries.
//
// Configuration is loaded from a single file named by either the
// CLEARINGHOUSE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no file discovery. A binary started
// with neither runs on [Default] plus its flags; see [Resolve].
//
// The file has one section per role (bank, house, agent) and may
// carry environment-specific sections (development, staging,
// production) whose non-zero values override the base sections when
// [Config].Environment matches.
//
// Durations are written as Go duration strings ("30s") and amounts as
// decimal numbers or strings ("20", "99.50"). ${HOME} and
// ${VAR:-default} patterns are expanded in house.items_file.
//
// Key exports:
//
//   - [Config] -- master struct with Bank, House, Agent
//   - [Default] -- returns a Config with the protocol defaults
//   - [Load], [LoadFile], [Resolve] -- entry points for loading
package config
