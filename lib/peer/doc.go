// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package peer is the messaging substrate shared by the bank, the
// auction houses, and the agents.
//
// Each role runs one [Node]. A Node separates "bytes arrived" from
// "business logic runs":
//
//   - The acceptor ([Node.Serve]) accepts inbound TCP connections and
//     queues them without reading anything.
//   - The bootstrap worker reads exactly one message from each queued
//     connection and asks the role whether it is a registration. A
//     registration is delivered to the dispatcher; anything else is
//     logged and the connection is closed.
//   - One listener goroutine per registered connection ([Node.Listen])
//     reads messages and pushes each one, paired with its [Conn], onto
//     the role's single delivery queue.
//   - One dispatcher ([Node.Dispatch]) drains that queue and calls the
//     role's [Handler]. Internal work, such as the auction sweep or a
//     state snapshot requested by an operator, is scheduled onto the
//     same goroutine with [Node.Do] and [Node.Run].
//
// Because exactly one dispatcher goroutine applies every message and
// task, the role's state (the bank ledger, a house's auction panel, an
// agent's view) has a single writer and needs no locks of its own.
//
// Listeners stop when their connection is closed, when the peer goes
// away, or on a stream-level decode failure. A message that is valid
// CBOR but not a valid protocol message is logged and skipped.
package peer
