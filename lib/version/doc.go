// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the clearinghouse
// binaries.
//
// [GitCommit], [GitDirty], [BuildTime] and [Version] are injected at
// build time via -ldflags -X and default to "unknown" / "0.1.0-dev" in
// development builds and test runs. [Info] formats them for --version
// output and [Print] writes the full banner a binary prints before
// exiting.
package version
