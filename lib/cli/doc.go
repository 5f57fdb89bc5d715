// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds the command-line plumbing shared by the
// clearinghouse binaries.
//
// [Common] binds the flags every binary accepts (--config, --log-level,
// --version) to a pflag set. [Common.Load] resolves the configuration
// file, applies the --log-level override and validates the shared
// settings. Each binary then layers its own role flags over the loaded
// [config.Config] with [Override], so a flag given on the command line
// wins over the file and an absent flag leaves the file value alone.
//
// [NewLogger] builds the process logger: slog.TextHandler when stderr
// is a terminal and slog.JSONHandler otherwise.
package cli
