// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by the
// clearinghouse binaries: reporting a fatal error from run() before or
// after the structured logger exists, and exiting with the status that
// distinguishes bad command lines from runtime failures.
package process
