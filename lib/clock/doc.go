// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the injectable time source for the auction house.
//
// Auction deadlines are single-shot AfterFunc callbacks and the panel
// sweep is driven by a Ticker. Both come from a Clock so tests can run
// a full 30-second auction in microseconds:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	engine := auction.NewEngine(auction.Config{Clock: fake, ...})
//	fake.Advance(30 * time.Second) // every untouched auction expires
//
// Production code passes Real(). Nothing outside this package calls
// time.AfterFunc or time.NewTicker directly.
package clock
