// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent is the bidding client. An Agent registers with the
// bank, follows the bank's directory of auction houses (connecting to
// new houses and dropping removed ones), caches each house's listings
// and its own balance, and submits bids.
//
// All cached state belongs to the agent's dispatcher goroutine.
// Operator calls ([Agent.Bid], [Agent.Snapshot], [Agent.Close]) run
// on the dispatcher too, so they see a consistent view and never race
// with incoming messages.
package agent
