// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bank is the bank service: it accepts registrations from
// agents and auction houses, applies hold, release, and settlement
// requests to a [ledger.Ledger], and pushes balance snapshots and the
// auction house directory to connected parties.
//
// Every ledger mutation happens on the service's dispatcher goroutine.
// Failures on one account (unknown id, uncovered settlement, failed
// send) are logged and never stop the dispatcher.
package bank
