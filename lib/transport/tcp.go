// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Compile-time interface checks.
var (
	_ Listener = (*TCPListener)(nil)
	_ Dialer   = (*TCPDialer)(nil)
)

// TCPListener accepts inbound TCP connections.
type TCPListener struct {
	listener net.Listener
}

// NewTCPListener listens on address (e.g. ":7000" or "127.0.0.1:0").
func NewTCPListener(address string) (*TCPListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}
	return &TCPListener{listener: listener}, nil
}

// ListenPort listens on every interface at port. Port 0 picks a free
// port. Ports outside 0-65535 are rejected before touching the network.
func ListenPort(port int) (*TCPListener, error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 0 and 65535", port)
	}
	return NewTCPListener(net.JoinHostPort("", strconv.Itoa(port)))
}

func (l *TCPListener) Accept() (net.Conn, error) { return l.listener.Accept() }

func (l *TCPListener) Address() string { return l.listener.Addr().String() }

func (l *TCPListener) Port() int {
	if address, ok := l.listener.Addr().(*net.TCPAddr); ok {
		return address.Port
	}
	return 0
}

func (l *TCPListener) Close() error { return l.listener.Close() }

// TCPDialer opens TCP connections.
type TCPDialer struct {
	// Timeout bounds connection establishment. Zero means only the
	// context deadline applies.
	Timeout time.Duration
}

// DialContext opens a TCP connection to address ("host:port").
func (d *TCPDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	return (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
}
