// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/clearinghouse/lib/protocol"
	"github.com/bureau-foundation/clearinghouse/lib/testutil"
	"github.com/bureau-foundation/clearinghouse/lib/transport"
	"github.com/shopspring/decimal"
)

const (
	testTimeout = 5 * time.Second
	accountID   = "CL0004"
)

type harness struct {
	agent *Agent
	bank  *testutil.Wire
	done  chan error
}

func startAgent(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	bankListener := testutil.Loopback(t)

	agent := New(Config{
		Name:            "alice",
		StartingBalance: decimal.NewFromInt(100),
		BankAddress:     bankListener.Address(),
		Logger:          testutil.Logger(t),
	})
	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, testTimeout, "waiting for agent to stop")
	})

	bank := testutil.AcceptWire(t, bankListener)
	registration := testutil.Expect[protocol.NewAgent](bank)
	if registration.Name != "alice" || !registration.StartingBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("registration = %+v", registration)
	}
	bank.Send(protocol.AgentMade{AccountID: accountID})
	bank.Send(protocol.UpdateMoney{Balance: decimal.NewFromInt(100), TotalHolds: decimal.Zero})
	bank.Send(protocol.AuctionList{Houses: map[string]protocol.Address{}})

	h := &harness{agent: agent, bank: bank, done: done}
	h.waitFor(t, "registration", func(state State) bool {
		return state.AccountID == accountID && state.Balance.Equal(decimal.NewFromInt(100))
	})
	return h
}

func (h *harness) waitFor(t *testing.T, what string, condition func(State) bool) State {
	t.Helper()
	var state State
	testutil.Eventually(t, testTimeout, func() bool {
		var err error
		state, err = h.agent.Snapshot(context.Background())
		return err == nil && condition(state)
	}, "waiting for %s", what)
	return state
}

func listings(leader string) []protocol.Listing {
	return []protocol.Listing{
		{Item: "lamp", AuctionID: 1, CurrentBid: decimal.NewFromInt(20), LeaderName: leader},
		{Item: "rug", AuctionID: 2, CurrentBid: decimal.NewFromInt(20)},
		{Item: "vase", AuctionID: 3, CurrentBid: decimal.NewFromInt(20)},
	}
}

// joinHouse advertises a scripted house and completes the agent's
// registration with it.
func (h *harness) joinHouse(t *testing.T, name string) (*testutil.Wire, *transport.TCPListener) {
	t.Helper()
	listener := testutil.Loopback(t)
	h.bank.Send(protocol.AuctionList{Houses: map[string]protocol.Address{
		name: {Host: "127.0.0.1", Port: listener.Port()},
	}})
	house := testutil.AcceptWire(t, listener)
	registration := testutil.Expect[protocol.RegisterAgent](house)
	if registration.AccountID != accountID || registration.Name != "alice" {
		t.Fatalf("house registration = %+v", registration)
	}
	house.Send(protocol.NewAuctions{HouseName: name, Auctions: listings("")})
	h.waitFor(t, "listings", func(state State) bool {
		return len(state.Houses[name].Listings) == 3
	})
	return house, listener
}

func TestRegistration(t *testing.T) {
	h := startAgent(t)
	state, err := h.agent.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if state.Name != "alice" || len(state.Houses) != 0 || !state.Available().Equal(decimal.NewFromInt(100)) {
		t.Errorf("state = %+v", state)
	}
}

func TestDirectorySync(t *testing.T) {
	h := startAgent(t)
	house, listener := h.joinHouse(t, "north")

	state, _ := h.agent.Snapshot(context.Background())
	north := state.Houses["north"]
	if !north.Connected || north.Address.Port != listener.Port() {
		t.Errorf("north = %+v", north)
	}

	// Re-sending the same directory must not reconnect.
	h.bank.Send(protocol.AuctionList{Houses: map[string]protocol.Address{
		"north": {Host: "127.0.0.1", Port: listener.Port()},
	}})
	h.bank.Send(protocol.AuctionList{Houses: map[string]protocol.Address{}})
	house.RequireClosed()
	h.waitFor(t, "house removal", func(state State) bool {
		return len(state.Houses) == 0
	})
}

func TestBid(t *testing.T) {
	h := startAgent(t)
	house, _ := h.joinHouse(t, "north")

	if err := h.agent.Bid(context.Background(), "north", 1, decimal.NewFromInt(25)); err != nil {
		t.Fatalf("Bid() error: %v", err)
	}
	bid := testutil.Expect[protocol.NewBid](house)
	if bid.Item != "lamp" || bid.AuctionID != 1 || bid.AccountID != accountID || !bid.Amount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("NewBid = %+v", bid)
	}
}

func TestBidErrors(t *testing.T) {
	h := startAgent(t)
	h.joinHouse(t, "north")
	ctx := context.Background()

	if err := h.agent.Bid(ctx, "south", 1, decimal.NewFromInt(25)); !errors.Is(err, ErrUnknownHouse) {
		t.Errorf("unknown house: error = %v, want ErrUnknownHouse", err)
	}
	if err := h.agent.Bid(ctx, "north", 9, decimal.NewFromInt(25)); !errors.Is(err, ErrUnknownAuction) {
		t.Errorf("unknown auction: error = %v, want ErrUnknownAuction", err)
	}
}

func TestBidNext(t *testing.T) {
	h := startAgent(t)
	house, _ := h.joinHouse(t, "north")
	ctx := context.Background()

	amount, err := h.agent.BidNext(ctx, "north", 2)
	if err != nil {
		t.Fatalf("BidNext() error: %v", err)
	}
	if !amount.Equal(decimal.NewFromInt(21)) {
		t.Errorf("BidNext() = %s, want 21", amount)
	}
	if bid := testutil.Expect[protocol.NewBid](house); bid.Item != "rug" || !bid.Amount.Equal(amount) {
		t.Errorf("NewBid = %+v", bid)
	}

	h.bank.Send(protocol.UpdateMoney{Balance: decimal.NewFromInt(100), TotalHolds: decimal.NewFromInt(90)})
	h.waitFor(t, "holds", func(state State) bool { return state.TotalHolds.Equal(decimal.NewFromInt(90)) })
	if _, err := h.agent.BidNext(ctx, "north", 3); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("BidNext() over available: error = %v, want ErrInsufficientFunds", err)
	}
}

func TestOutcomesAndWins(t *testing.T) {
	h := startAgent(t)
	house, _ := h.joinHouse(t, "north")

	house.Send(protocol.ConfirmBid{Success: true, Item: "lamp", HouseName: "north"})
	house.Send(protocol.ConfirmBid{Success: false, Item: "rug", HouseName: "north"})
	house.Send(protocol.AuctionWon{Item: "lamp", Amount: decimal.NewFromInt(25)})

	state := h.waitFor(t, "win", func(state State) bool { return len(state.Won) == 1 })
	if win := state.Won[0]; win.House != "north" || win.Item != "lamp" || !win.Amount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("win = %+v", win)
	}
	want := []Outcome{
		{House: "north", Item: "lamp", Success: true},
		{House: "north", Item: "rug", Success: false},
	}
	if len(state.Outcomes) != len(want) {
		t.Fatalf("outcomes = %+v, want %+v", state.Outcomes, want)
	}
	for i := range want {
		if state.Outcomes[i] != want[i] {
			t.Errorf("outcome %d = %+v, want %+v", i, state.Outcomes[i], want[i])
		}
	}

	var sawWin bool
	for !sawWin {
		event := testutil.RequireReceive(t, h.agent.Events(), testTimeout, "waiting for AuctionWon event")
		if _, ok := event.Message.(protocol.AuctionWon); ok {
			sawWin = event.House == "north"
		}
	}
}

func TestCloseRefusedWhileLeading(t *testing.T) {
	h := startAgent(t)
	house, _ := h.joinHouse(t, "north")
	ctx := context.Background()

	house.Send(protocol.ConfirmBid{Success: true, Item: "lamp", HouseName: "north"})
	house.Send(protocol.NewAuctions{HouseName: "north", Auctions: listings("alice")})
	h.waitFor(t, "leadership", func(state State) bool {
		return state.Houses["north"].Listings[0].LeaderName == "alice"
	})
	if err := h.agent.Close(ctx); !errors.Is(err, ErrStillLeading) {
		t.Fatalf("Close() while leading: error = %v, want ErrStillLeading", err)
	}

	house.Send(protocol.NewAuctions{HouseName: "north", Auctions: listings("bob")})
	h.waitFor(t, "lost leadership", func(state State) bool {
		return state.Houses["north"].Listings[0].LeaderName == "bob"
	})
	if err := h.agent.Close(ctx); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if goodbye := testutil.Expect[protocol.CloseAgent](house); goodbye.AccountID != accountID {
		t.Errorf("house CloseAgent = %+v", goodbye)
	}
	if goodbye := testutil.Expect[protocol.CloseAgent](h.bank); goodbye.AccountID != accountID {
		t.Errorf("bank CloseAgent = %+v", goodbye)
	}
	h.bank.Close()
	if err := testutil.RequireReceive(t, h.done, testTimeout, "waiting for Run after Close"); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	h.done <- nil
}

func TestCloseIgnoresSameNamedLeader(t *testing.T) {
	h := startAgent(t)
	house, _ := h.joinHouse(t, "north")

	// Another "alice" leads the lamp; this agent never had a bid on it
	// accepted.
	house.Send(protocol.ConfirmBid{Success: false, Item: "lamp", HouseName: "north"})
	house.Send(protocol.NewAuctions{HouseName: "north", Auctions: listings("alice")})
	h.waitFor(t, "homonymous leader", func(state State) bool {
		return state.Houses["north"].Listings[0].LeaderName == "alice"
	})
	if err := h.agent.Close(context.Background()); err != nil {
		t.Fatalf("Close() error: %v, want success", err)
	}
	if goodbye := testutil.Expect[protocol.CloseAgent](house); goodbye.AccountID != accountID {
		t.Errorf("house CloseAgent = %+v", goodbye)
	}
}

func TestBankLossStopsAgent(t *testing.T) {
	h := startAgent(t)
	h.bank.Close()
	err := testutil.RequireReceive(t, h.done, testTimeout, "waiting for Run after bank loss")
	if !errors.Is(err, ErrBankLost) {
		t.Errorf("Run() = %v, want ErrBankLost", err)
	}
	h.done <- err
}
