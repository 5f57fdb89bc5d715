// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"

	"github.com/bureau-foundation/clearinghouse/lib/transport"
)

// Loopback opens a TCP listener on an ephemeral 127.0.0.1 port and
// closes it when the test ends.
func Loopback(t testing.TB) *transport.TCPListener {
	t.Helper()
	listener, err := transport.NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("opening loopback listener: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	return listener
}
