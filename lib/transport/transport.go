// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
)

// Listener accepts inbound peer connections.
type Listener interface {
	// Accept blocks until a connection arrives or the listener is
	// closed. After Close it returns an error wrapping net.ErrClosed.
	Accept() (net.Conn, error)

	// Address returns the bound "host:port".
	Address() string

	// Port returns the bound TCP port. Houses advertise this to the
	// bank, so a house listening on ":0" reports the real port.
	Port() int

	Close() error
}

// Dialer opens outbound peer connections.
type Dialer interface {
	DialContext(ctx context.Context, address string) (net.Conn, error)
}
