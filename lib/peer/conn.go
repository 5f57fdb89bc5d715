// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/clearinghouse/lib/codec"
	"github.com/bureau-foundation/clearinghouse/lib/protocol"
	"github.com/google/uuid"
)

// ErrStopped is returned by Send on a connection that has been closed.
var ErrStopped = errors.New("connection stopped")

// writeTimeout bounds a single message write. A peer that stops
// reading for this long is treated as gone.
const writeTimeout = 10 * time.Second

// Conn is one registered duplex connection to another role. Sends are
// safe from any goroutine; Receive is called only by the connection's
// listener (or once by the bootstrap worker before the listener
// starts).
type Conn struct {
	id      string
	conn    net.Conn
	logger  *slog.Logger
	decoder *codec.Decoder

	writeMu sync.Mutex
	encoder *codec.Encoder

	stopped   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewConn wraps an established network connection.
func NewConn(netConn net.Conn, logger *slog.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:      id,
		conn:    netConn,
		logger:  logger.With("conn", id, "remote", netConn.RemoteAddr().String()),
		decoder: codec.NewDecoder(netConn),
		encoder: codec.NewEncoder(netConn),
		done:    make(chan struct{}),
	}
}

// ID identifies the connection in logs.
func (c *Conn) ID() string { return c.id }

// RemoteHost returns the host part of the peer's address.
func (c *Conn) RemoteHost() string {
	address := c.conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	return host
}

// Send writes one message. A failed write closes the connection, so a
// peer that cannot be reached stops receiving instead of silently
// missing messages.
func (c *Conn) Send(message protocol.Message) error {
	if c.stopped.Load() {
		return fmt.Errorf("sending %s: %w", message.Kind(), ErrStopped)
	}

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := protocol.Write(c.encoder, message)
	c.writeMu.Unlock()

	if err != nil {
		c.logger.Warn("send failed, closing connection", "kind", message.Kind(), "error", err)
		c.Close()
		return fmt.Errorf("sending %s: %w", message.Kind(), err)
	}
	return nil
}

// Receive blocks for the next message.
func (c *Conn) Receive() (protocol.Message, error) {
	return protocol.Read(c.decoder)
}

// receiveWithin reads one message, giving up after timeout.
func (c *Conn) receiveWithin(timeout time.Duration) (protocol.Message, error) {
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	defer c.conn.SetReadDeadline(time.Time{})
	return c.Receive()
}

// Close sets the stop flag and closes the socket, which unblocks a
// listener waiting in Receive. Safe to call more than once.
func (c *Conn) Close() error {
	c.stopped.Store(true)
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
		close(c.done)
	})
	return err
}

// Done is closed once the connection is closed, by either side: the
// listener closes a connection whose peer went away.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Stopped reports whether Close has been called.
func (c *Conn) Stopped() bool { return c.stopped.Load() }

// Logger returns a logger tagged with the connection id.
func (c *Conn) Logger() *slog.Logger { return c.logger }
