// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package auctionhouse is the auction house service. It registers
// with the bank, accepts agent registrations, and drives an
// [auction.Engine] from its dispatcher: bids from agents, hold
// decisions from the bank, and a periodic sweep that finalizes
// expired auctions.
//
// The sweep ticker goroutine only schedules the sweep onto the
// dispatcher; every engine call happens there. After [Service.Close]
// the house stops opening auctions, lets the open ones run out, then
// tells the bank it is leaving and shuts down.
package auctionhouse
