// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/clearinghouse/lib/protocol"
	"github.com/bureau-foundation/clearinghouse/lib/transport"
)

// Delivery is one inbound message paired with the connection it came
// from, which is also where replies go.
type Delivery struct {
	Message protocol.Message
	From    *Conn

	// Registration is set only on the first message of an inbound
	// connection, after bootstrap accepted it.
	Registration bool
}

// Handler applies deliveries to a role's state. Handle is only ever
// called from the Node's dispatcher goroutine.
type Handler interface {
	Handle(ctx context.Context, delivery Delivery)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, delivery Delivery)

func (f HandlerFunc) Handle(ctx context.Context, delivery Delivery) { f(ctx, delivery) }

// Config configures a Node.
type Config struct {
	// Role names the node in logs ("bank", "house", "agent").
	Role string

	// Handler receives every delivery.
	Handler Handler

	// Registers reports whether the first message read from a new
	// inbound connection is a registration this role accepts. Nil
	// rejects every inbound connection.
	Registers func(protocol.Message) bool

	// QueueDepth is the capacity of the delivery queue and of the
	// queue of accepted-but-unclassified connections. Default 1024.
	QueueDepth int

	// RegistrationTimeout bounds the bootstrap read of a new
	// connection's first message. Default 5s.
	//
	// Connections are classified one at a time, so a client that
	// connects and stays silent holds up every registration queued
	// behind it for up to this long.
	RegistrationTimeout time.Duration

	Logger *slog.Logger
}

// DefaultRegistrationTimeout is the RegistrationTimeout used when
// Config leaves it unset.
const DefaultRegistrationTimeout = 5 * time.Second

// Node runs one role's acceptor, bootstrap worker, listeners, and
// dispatcher.
type Node struct {
	role                string
	handler             Handler
	registers           func(protocol.Message) bool
	registrationTimeout time.Duration
	logger              *slog.Logger

	deliveries chan Delivery
	tasks      chan func(context.Context)
	accepted   chan net.Conn

	mu        sync.Mutex
	live      map[*Conn]struct{}
	listeners sync.WaitGroup
}

// New creates a Node. Start it with Dispatch, and with Serve if the
// role accepts inbound connections.
func New(config Config) *Node {
	if config.Handler == nil {
		panic("peer.New: Handler is required")
	}
	if config.QueueDepth <= 0 {
		config.QueueDepth = 1024
	}
	if config.RegistrationTimeout <= 0 {
		config.RegistrationTimeout = DefaultRegistrationTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Node{
		role:                config.Role,
		handler:             config.Handler,
		registers:           config.Registers,
		registrationTimeout: config.RegistrationTimeout,
		logger:              config.Logger.With("role", config.Role),
		deliveries:          make(chan Delivery, config.QueueDepth),
		tasks:               make(chan func(context.Context), config.QueueDepth),
		accepted:            make(chan net.Conn, config.QueueDepth),
		live:                make(map[*Conn]struct{}),
	}
}

// Serve accepts connections on listener until ctx is cancelled, then
// closes the listener. Accepted connections are classified by the
// bootstrap worker, which Serve runs alongside the accept loop.
func (n *Node) Serve(ctx context.Context, listener transport.Listener) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	bootstrapDone := make(chan struct{})
	go func() {
		defer close(bootstrapDone)
		n.bootstrap(ctx)
	}()

	n.logger.Info("accepting connections", "address", listener.Address())

	for {
		netConn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			n.logger.Error("accept failed", "error", err)
			continue
		}
		select {
		case n.accepted <- netConn:
		case <-ctx.Done():
			netConn.Close()
		}
	}

	<-bootstrapDone
	return nil
}

// bootstrap classifies accepted connections one at a time.
func (n *Node) bootstrap(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			n.drainAccepted()
			return
		case netConn := <-n.accepted:
			n.classify(ctx, netConn)
		}
	}
}

func (n *Node) classify(ctx context.Context, netConn net.Conn) {
	conn := NewConn(netConn, n.logger)

	// Shutdown must not wait out the registration timeout.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	message, err := conn.receiveWithin(n.registrationTimeout)
	if !stop() {
		return
	}
	if err != nil {
		conn.Logger().Warn("no registration received, dropping connection", "error", err)
		conn.Close()
		return
	}
	if n.registers == nil || !n.registers(message) {
		conn.Logger().Warn("unexpected first message, dropping connection", "kind", message.Kind())
		conn.Close()
		return
	}

	select {
	case n.deliveries <- Delivery{Message: message, From: conn, Registration: true}:
	case <-ctx.Done():
		conn.Close()
	}
}

func (n *Node) drainAccepted() {
	for {
		select {
		case netConn := <-n.accepted:
			netConn.Close()
		default:
			return
		}
	}
}

// Listen starts the listener goroutine for a registered connection.
// The listener runs until the connection is closed, the peer goes
// away, or the stream becomes unreadable. A connection already being
// listened to is left alone.
func (n *Node) Listen(ctx context.Context, conn *Conn) {
	n.mu.Lock()
	if _, ok := n.live[conn]; ok {
		n.mu.Unlock()
		conn.Logger().Warn("connection already has a listener")
		return
	}
	n.live[conn] = struct{}{}
	n.mu.Unlock()

	n.listeners.Add(1)
	go func() {
		defer n.listeners.Done()
		defer func() {
			n.mu.Lock()
			delete(n.live, conn)
			n.mu.Unlock()
		}()
		n.listen(ctx, conn)
	}()
}

func (n *Node) listen(ctx context.Context, conn *Conn) {
	logger := conn.Logger()
	for {
		message, err := conn.Receive()
		if err != nil {
			if conn.Stopped() || ctx.Err() != nil {
				logger.Debug("listener stopped")
				return
			}
			if errors.Is(err, protocol.ErrMalformed) {
				logger.Warn("skipping undecodable message", "error", err)
				continue
			}
			if isPeerGone(err) {
				logger.Info("peer disconnected")
			} else {
				logger.Error("connection failed", "error", err)
			}
			conn.Close()
			return
		}
		if n.registers != nil && n.registers(message) {
			logger.Warn("registration on a registered connection, dropping", "kind", message.Kind())
			continue
		}

		select {
		case n.deliveries <- Delivery{Message: message, From: conn}:
		case <-ctx.Done():
			return
		}
	}
}

// Dial opens an outbound connection and sends the role's registration
// message on it. The caller decides when to Listen.
func (n *Node) Dial(ctx context.Context, dialer transport.Dialer, address string, registration protocol.Message) (*Conn, error) {
	netConn, err := dialer.DialContext(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}
	conn := NewConn(netConn, n.logger)
	if err := conn.Send(registration); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registering with %s: %w", address, err)
	}
	return conn, nil
}

// Dispatch runs the dispatcher until ctx is cancelled. On return every
// connection with a running listener has been closed.
func (n *Node) Dispatch(ctx context.Context) error {
	defer n.closeLive()
	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery := <-n.deliveries:
			n.handle(ctx, delivery)
		case task := <-n.tasks:
			n.run(ctx, task)
		}
	}
}

func (n *Node) handle(ctx context.Context, delivery Delivery) {
	defer func() {
		if recovered := recover(); recovered != nil {
			n.logger.Error("handler panicked, message dropped",
				"kind", delivery.Message.Kind(),
				"panic", fmt.Sprint(recovered),
			)
		}
	}()
	n.handler.Handle(ctx, delivery)
}

func (n *Node) run(ctx context.Context, task func(context.Context)) {
	defer func() {
		if recovered := recover(); recovered != nil {
			n.logger.Error("task panicked", "panic", fmt.Sprint(recovered))
		}
	}()
	task(ctx)
}

// Do queues task to run on the dispatcher goroutine and returns once
// it is queued.
func (n *Node) Do(ctx context.Context, task func(context.Context)) error {
	select {
	case n.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run queues task on the dispatcher and waits for it to finish. Must
// not be called from the dispatcher goroutine itself.
func (n *Node) Run(ctx context.Context, task func(context.Context)) error {
	done := make(chan struct{})
	if err := n.Do(ctx, func(ctx context.Context) {
		defer close(done)
		task(ctx)
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every listener goroutine has exited.
func (n *Node) Wait() { n.listeners.Wait() }

func (n *Node) closeLive() {
	n.mu.Lock()
	live := make([]*Conn, 0, len(n.live))
	for conn := range n.live {
		live = append(live, conn)
	}
	n.mu.Unlock()
	for _, conn := range live {
		conn.Close()
	}
}
