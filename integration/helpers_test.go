// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package integration_test runs a bank, auction houses and agents in
// one process, connected over loopback TCP, and checks the money and
// auction outcomes each side ends up with.
//
// Auction deadlines run on a fake clock. Tests advance it past a
// deadline and then call Sweep on the house, so finalization happens at
// a known point instead of on the real sweep ticker.
package integration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bureau-foundation/clearinghouse/lib/agent"
	"github.com/bureau-foundation/clearinghouse/lib/auctionhouse"
	"github.com/bureau-foundation/clearinghouse/lib/bank"
	"github.com/bureau-foundation/clearinghouse/lib/clock"
	"github.com/bureau-foundation/clearinghouse/lib/protocol"
	"github.com/bureau-foundation/clearinghouse/lib/testutil"
)

const waitTimeout = 5 * time.Second

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type testBank struct {
	service *bank.Service
	address string
}

func startBank(t *testing.T, ctx context.Context) *testBank {
	t.Helper()
	listener := testutil.Loopback(t)
	service := bank.New(bank.Config{Logger: testutil.Logger(t)})

	done := make(chan struct{})
	go func() {
		defer close(done)
		service.Serve(ctx, listener)
	}()
	t.Cleanup(func() { <-done })
	return &testBank{service: service, address: listener.Address()}
}

// requireAccount waits until the bank reports balance and holds for id.
func (b *testBank) requireAccount(t *testing.T, ctx context.Context, id, balance, holds string) {
	t.Helper()
	wantBalance := decimal.RequireFromString(balance)
	wantHolds := decimal.RequireFromString(holds)
	testutil.Eventually(t, waitTimeout, func() bool {
		account, ok, err := b.service.Account(ctx, id)
		return err == nil && ok &&
			account.Balance.Equal(wantBalance) &&
			account.TotalHolds().Equal(wantHolds)
	}, "account %s to reach balance %s with holds %s", id, balance, holds)
}

type testHouse struct {
	service *auctionhouse.Service
	clock   *clock.FakeClock
	done    chan error
}

func startHouse(t *testing.T, ctx context.Context, bankAddress, name string, items ...string) *testHouse {
	t.Helper()
	fake := clock.Fake(epoch)
	service := auctionhouse.New(auctionhouse.Config{
		Name:        name,
		BankAddress: bankAddress,
		Items:       items,
		Clock:       fake,
		Logger:      testutil.Logger(t),
	})
	house := &testHouse{service: service, clock: fake, done: make(chan error, 1)}
	listener := testutil.Loopback(t)
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		house.done <- service.Run(ctx, listener)
	}()
	t.Cleanup(func() { <-exited })

	testutil.Eventually(t, waitTimeout, func() bool {
		id, _, err := service.Account(ctx)
		return err == nil && id != ""
	}, "house %s to register with the bank", name)
	return house
}

func (h *testHouse) accountID(t *testing.T, ctx context.Context) string {
	t.Helper()
	id, _, err := h.service.Account(ctx)
	if err != nil {
		t.Fatalf("house Account: %v", err)
	}
	return id
}

// expire moves past every open deadline and finalizes the expired
// auctions.
func (h *testHouse) expire(t *testing.T, ctx context.Context) {
	t.Helper()
	h.clock.Advance(31 * time.Second)
	if err := h.service.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
}

type testAgent struct {
	*agent.Agent
	name string
	done chan error
}

func startAgent(t *testing.T, ctx context.Context, bankAddress, name string, balance int64) *testAgent {
	t.Helper()
	bidder := agent.New(agent.Config{
		Name:            name,
		StartingBalance: decimal.NewFromInt(balance),
		BankAddress:     bankAddress,
		EventBuffer:     256,
		Logger:          testutil.Logger(t),
	})
	a := &testAgent{Agent: bidder, name: name, done: make(chan error, 1)}
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		a.done <- bidder.Run(ctx)
	}()
	t.Cleanup(func() { <-exited })
	return a
}

// expect reads events until one of type T satisfies match.
func expect[T protocol.Message](t *testing.T, a *testAgent, match func(agent.Event, T) bool) T {
	t.Helper()
	deadline := time.NewTimer(waitTimeout)
	defer deadline.Stop()
	for {
		select {
		case event := <-a.Events():
			if message, ok := event.Message.(T); ok && (match == nil || match(event, message)) {
				return message
			}
		case <-deadline.C:
			var zero T
			t.Fatalf("agent %s: timed out waiting for %s", a.name, zero.Kind())
			return zero
		}
	}
}

// waitListings waits until the agent sees count listings at house.
func (a *testAgent) waitListings(t *testing.T, ctx context.Context, house string, count int) []protocol.Listing {
	t.Helper()
	var listings []protocol.Listing
	testutil.Eventually(t, waitTimeout, func() bool {
		state, err := a.Snapshot(ctx)
		if err != nil {
			return false
		}
		listings = state.Houses[house].Listings
		return len(listings) == count
	}, "agent %s to see %d auctions at %s", a.name, count, house)
	return listings
}

func (a *testAgent) accountID(t *testing.T, ctx context.Context) string {
	t.Helper()
	var id string
	testutil.Eventually(t, waitTimeout, func() bool {
		state, err := a.Snapshot(ctx)
		id = state.AccountID
		return err == nil && id != ""
	}, "agent %s to be registered", a.name)
	return id
}

func requireRunResult(t *testing.T, done <-chan error, want error) {
	t.Helper()
	select {
	case err := <-done:
		if !errors.Is(err, want) {
			t.Errorf("Run returned %v, want %v", err, want)
		}
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return")
	}
}
