// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for clearinghouse
// packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the
// select-with-deadline pattern so that tests waiting on goroutines do
// not hang when something goes wrong. They are the only place tests
// use real wall-clock timeouts; protocol timing itself runs on a fake
// clock.
//
// [Logger] returns a slog.Logger that writes through t.Log, so output
// from a failing test's background goroutines appears next to the
// failure.
//
// [Eventually] polls a condition, for state read back through a
// service's dispatcher.
//
// [Loopback] opens a TCP listener on 127.0.0.1 with an ephemeral port.
// [Wire] plays one side of a protocol conversation over a raw
// connection, so a service can be tested against a scripted peer.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
