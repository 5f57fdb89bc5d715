// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package auction implements an auction house's bidding engine: a
// fixed panel of timed auctions and the per-auction state machine
// that turns bids into bank holds, holds into leadership, and expired
// auctions into settlements.
//
// The engine never touches the network. Every operation returns the
// [Effect] values the caller must deliver (holds and releases for the
// bank, confirmations and wins for agents), so the engine can be
// driven directly in tests with a fake clock.
//
// An Engine is not safe for concurrent use; the auction house
// service calls it only from its dispatcher goroutine. The one
// exception is the per-auction expiry timer, whose callback only
// stores an atomic value that [Engine.Sweep] later reads.
//
// Bids are compared with strictly-greater-than at both submission and
// hold confirmation. Because the bank confirms holds in arrival order
// and the engine promotes leaders in confirmation order, the highest
// confirmed bid wins regardless of submission order.
package auction
