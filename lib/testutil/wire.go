// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net"
	"testing"
	"time"

	"github.com/bureau-foundation/clearinghouse/lib/codec"
	"github.com/bureau-foundation/clearinghouse/lib/protocol"
	"github.com/bureau-foundation/clearinghouse/lib/transport"
	"github.com/shopspring/decimal"
)

// WireTimeout bounds every Wire read.
const WireTimeout = 5 * time.Second

// Wire speaks the message protocol directly over one connection, so a
// test can stand in for any role and see exactly what the other side
// sends.
type Wire struct {
	t       testing.TB
	conn    net.Conn
	encoder *codec.Encoder
	decoder *codec.Decoder
}

// DialWire connects to address. The connection is closed when the
// test ends.
func DialWire(t testing.TB, address string) *Wire {
	t.Helper()
	conn, err := net.Dial("tcp", address)
	if err != nil {
		t.Fatalf("dialing %s: %v", address, err)
	}
	return NewWire(t, conn)
}

// AcceptWire accepts one connection on listener.
func AcceptWire(t testing.TB, listener transport.Listener) *Wire {
	t.Helper()
	accepted := make(chan net.Conn, 1)
	failed := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			failed <- err
			return
		}
		accepted <- conn
	}()
	select {
	case conn := <-accepted:
		return NewWire(t, conn)
	case err := <-failed:
		t.Fatalf("accepting: %v", err)
	case <-time.After(WireTimeout):
		t.Fatalf("timed out after %v waiting for a connection", WireTimeout)
	}
	panic("unreachable")
}

// NewWire wraps an established connection.
func NewWire(t testing.TB, conn net.Conn) *Wire {
	t.Cleanup(func() { conn.Close() })
	return &Wire{t: t, conn: conn, encoder: codec.NewEncoder(conn), decoder: codec.NewDecoder(conn)}
}

// Send writes one message or fails the test.
func (w *Wire) Send(message protocol.Message) {
	w.t.Helper()
	if err := protocol.Write(w.encoder, message); err != nil {
		w.t.Fatalf("sending %s: %v", message.Kind(), err)
	}
}

// Receive reads one message, giving up after WireTimeout.
func (w *Wire) Receive() (protocol.Message, error) {
	w.conn.SetReadDeadline(time.Now().Add(WireTimeout))
	return protocol.Read(w.decoder)
}

// RequireClosed fails the test unless the peer closes the connection.
func (w *Wire) RequireClosed() {
	w.t.Helper()
	if message, err := w.Receive(); err == nil {
		w.t.Fatalf("received %#v, want the connection closed", message)
	}
}

// Close closes the connection.
func (w *Wire) Close() { w.conn.Close() }

// Expect reads one message and fails the test unless it is a T.
func Expect[T protocol.Message](w *Wire) T {
	w.t.Helper()
	message, err := w.Receive()
	if err != nil {
		w.t.Fatalf("waiting for %T: %v", *new(T), err)
	}
	typed, ok := message.(T)
	if !ok {
		w.t.Fatalf("received %#v, want %T", message, *new(T))
	}
	return typed
}

// ExpectMoney reads an UpdateMoney and checks both amounts.
func ExpectMoney(w *Wire, balance, holds string) {
	w.t.Helper()
	money := Expect[protocol.UpdateMoney](w)
	if !money.Balance.Equal(decimal.RequireFromString(balance)) || !money.TotalHolds.Equal(decimal.RequireFromString(holds)) {
		w.t.Fatalf("UpdateMoney = (%s, %s), want (%s, %s)", money.Balance, money.TotalHolds, balance, holds)
	}
}
