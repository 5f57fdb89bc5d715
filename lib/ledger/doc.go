// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger holds the bank's accounts and fund holds.
//
// An agent account has a balance and a set of holds, each reserving
// part of the balance for one auction the agent is bidding in. The
// ledger maintains, for every agent account and after every
// operation, that the holds sum to no more than the balance. A hold
// is replaced (never stacked) when the same agent re-bids in the same
// auction, and is consumed either by [Ledger.ReleaseHold] (no funds
// move) or by [Ledger.Settle] (the held amount moves to the house).
//
// House accounts carry a balance and the address agents use to reach
// the house; [Ledger.Directory] lists them by name.
//
// A Ledger is not safe for concurrent use. The bank service owns one
// and touches it only from its dispatcher goroutine. Accessors return
// copies, so callers never see the ledger's internal maps.
package ledger
