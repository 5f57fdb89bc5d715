// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/clearinghouse/lib/agent"
	"github.com/bureau-foundation/clearinghouse/lib/config"
	"github.com/bureau-foundation/clearinghouse/lib/protocol"
)

type fakeOperator struct {
	state    agent.State
	bids     []string
	closeErr error
	closed   bool
}

func (f *fakeOperator) Bid(_ context.Context, house string, auctionID int, amount decimal.Decimal) error {
	f.bids = append(f.bids, fmt.Sprintf("%s#%d=%s", house, auctionID, amount))
	return nil
}

func (f *fakeOperator) BidNext(_ context.Context, house string, auctionID int) (decimal.Decimal, error) {
	if house != "north" {
		return decimal.Zero, fmt.Errorf("%q: %w", house, agent.ErrUnknownHouse)
	}
	amount := decimal.NewFromInt(21)
	f.bids = append(f.bids, fmt.Sprintf("%s#%d=%s", house, auctionID, amount))
	return amount, nil
}

func (f *fakeOperator) Close(context.Context) error {
	if f.closeErr != nil {
		return f.closeErr
	}
	f.closed = true
	return nil
}

func (f *fakeOperator) Snapshot(context.Context) (agent.State, error) {
	return f.state, nil
}

func newTestConsole() (*console, *fakeOperator, *bytes.Buffer) {
	operator := &fakeOperator{
		state: agent.State{
			AccountID:  "CL0004",
			Name:       "alice",
			Balance:    decimal.NewFromInt(100),
			TotalHolds: decimal.NewFromInt(25),
			Houses: map[string]agent.House{
				"north": {
					Name:      "north",
					Address:   protocol.Address{Host: "127.0.0.1", Port: 7100},
					Connected: true,
					Listings: []protocol.Listing{
						{Item: "lamp", AuctionID: 1, CurrentBid: decimal.NewFromInt(25), LeaderName: "alice"},
						{Item: "rug", AuctionID: 2, CurrentBid: decimal.NewFromInt(20)},
					},
				},
			},
			Won: []agent.Win{{House: "north", Item: "vase", Amount: decimal.NewFromInt(30)}},
		},
	}
	var out bytes.Buffer
	return &console{agent: operator, out: &out}, operator, &out
}

func TestConsole_Commands(t *testing.T) {
	shell, operator, out := newTestConsole()
	input := strings.Join([]string{
		"list",
		"bid north 2 22.50",
		"bidnext north #2",
		"balance",
		"won",
		"",
		"frobnicate",
		"bid north two 5",
	}, "\n")

	if err := shell.run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := strings.Join(operator.bids, " "); got != "north#2=22.5 north#2=21" {
		t.Errorf("bids = %q", got)
	}
	output := out.String()
	for _, want := range []string{
		"north 127.0.0.1:7100",
		"#1 lamp",
		"alice",
		"bid 22.5 on north #2",
		"bid 21 on north #2",
		"account CL0004: balance 100, held 25, available 75",
		"vase from north for 30",
		`error: unknown command "frobnicate"`,
		`error: invalid auction id "two"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestConsole_CloseStopsReading(t *testing.T) {
	shell, operator, out := newTestConsole()
	operator.closeErr = fmt.Errorf("lamp at north: %w", agent.ErrStillLeading)

	// The first close is refused and reading continues; the second
	// succeeds and the bid after it is never read.
	input := "close\n"
	if err := shell.run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if operator.closed {
		t.Fatal("close should have been refused")
	}
	if !strings.Contains(out.String(), "still the leading bidder") {
		t.Errorf("output = %q, want refusal", out.String())
	}

	operator.closeErr = nil
	if err := shell.run(context.Background(), strings.NewReader("close\nbid north 2 30\n")); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !operator.closed {
		t.Error("close did not reach the agent")
	}
	if len(operator.bids) != 0 {
		t.Errorf("bids after close = %v", operator.bids)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		event agent.Event
		want  string
	}{
		{agent.Event{Message: protocol.AgentMade{AccountID: "CL0004"}}, "registered as CL0004"},
		{agent.Event{Message: protocol.AuctionList{}}, "no auction houses open"},
		{
			agent.Event{Message: protocol.AuctionList{Houses: map[string]protocol.Address{"south": {}, "north": {}}}},
			"auction houses: north, south",
		},
		{
			agent.Event{House: "north", Message: protocol.ConfirmBid{Success: true, Item: "lamp", HouseName: "north"}},
			"bid on lamp at north accepted",
		},
		{
			agent.Event{House: "north", Message: protocol.AuctionWon{Item: "lamp", Amount: decimal.NewFromInt(25)}},
			"won lamp at north for 25",
		},
	}
	for _, test := range tests {
		if got := describe(test.event); got != test.want {
			t.Errorf("describe(%T) = %q, want %q", test.event.Message, got, test.want)
		}
	}
}

func TestApplyAgentFlags(t *testing.T) {
	var flags agentFlags
	flagSet := pflag.NewFlagSet("clearinghouse-agent", pflag.ContinueOnError)
	addAgentFlags(flagSet, &flags)
	if err := flagSet.Parse([]string{"--name", "alice", "--balance", "250", "--bank", "bank:7000"}); err != nil {
		t.Fatal(err)
	}

	agentConfig := config.Default().Agent
	applyAgentFlags(flagSet, flags, &agentConfig)
	if agentConfig.Name != "alice" || agentConfig.Bank != "bank:7000" {
		t.Errorf("name=%q bank=%q", agentConfig.Name, agentConfig.Bank)
	}
	if !agentConfig.StartingBalance.Equal(decimal.NewFromInt(250)) {
		t.Errorf("balance = %s, want 250", agentConfig.StartingBalance)
	}
	if !agentConfig.BidIncrement.Equal(decimal.NewFromInt(1)) {
		t.Errorf("increment = %s, want default 1", agentConfig.BidIncrement)
	}
}
