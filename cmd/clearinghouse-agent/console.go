// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"cmp"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bureau-foundation/clearinghouse/lib/agent"
	"github.com/bureau-foundation/clearinghouse/lib/protocol"
)

// operator is the part of *agent.Agent the console drives.
type operator interface {
	Bid(ctx context.Context, house string, auctionID int, amount decimal.Decimal) error
	BidNext(ctx context.Context, house string, auctionID int) (decimal.Decimal, error)
	Close(ctx context.Context) error
	Snapshot(ctx context.Context) (agent.State, error)
}

type console struct {
	agent  operator
	out    io.Writer
	prompt bool
}

const help = `commands:
  list                      houses and their open auctions
  bid HOUSE ID AMOUNT       bid AMOUNT on auction ID
  bidnext HOUSE ID          bid the current bid plus the increment
  balance                   balance, held amount and available funds
  outcomes                  last bid result per item
  won                       items won
  close                     leave the bank and every house
`

// run executes commands read from in until in ends, ctx is cancelled,
// or a close succeeds.
func (c *console) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		if c.prompt {
			fmt.Fprint(c.out, "> ")
		}
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			done, err := c.execute(ctx, line)
			if err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
			if done {
				return nil
			}
		}
	}
}

// execute runs one command line. done is true after a successful close.
func (c *console) execute(ctx context.Context, line string) (done bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	command, args := fields[0], fields[1:]

	switch command {
	case "help", "?":
		fmt.Fprint(c.out, help)
	case "list":
		return false, c.list(ctx)
	case "bid":
		if len(args) != 3 {
			return false, fmt.Errorf("usage: bid HOUSE ID AMOUNT")
		}
		auctionID, err := parseAuctionID(args[1])
		if err != nil {
			return false, err
		}
		amount, err := decimal.NewFromString(args[2])
		if err != nil {
			return false, fmt.Errorf("invalid amount %q", args[2])
		}
		if err := c.agent.Bid(ctx, args[0], auctionID, amount); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "bid %s on %s #%d\n", amount, args[0], auctionID)
	case "bidnext":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: bidnext HOUSE ID")
		}
		auctionID, err := parseAuctionID(args[1])
		if err != nil {
			return false, err
		}
		amount, err := c.agent.BidNext(ctx, args[0], auctionID)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "bid %s on %s #%d\n", amount, args[0], auctionID)
	case "balance":
		state, err := c.agent.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "account %s: balance %s, held %s, available %s\n",
			state.AccountID, state.Balance, state.TotalHolds, state.Available())
	case "outcomes":
		state, err := c.agent.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		if len(state.Outcomes) == 0 {
			fmt.Fprintln(c.out, "no bids answered yet")
		}
		for _, outcome := range state.Outcomes {
			fmt.Fprintf(c.out, "%s at %s: %s\n", outcome.Item, outcome.House, acceptance(outcome.Success))
		}
	case "won":
		state, err := c.agent.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		if len(state.Won) == 0 {
			fmt.Fprintln(c.out, "nothing won yet")
		}
		for _, win := range state.Won {
			fmt.Fprintf(c.out, "%s from %s for %s\n", win.Item, win.House, win.Amount)
		}
	case "close", "quit", "exit":
		if err := c.agent.Close(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, "closed")
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q (try help)", command)
	}
	return false, nil
}

func (c *console) list(ctx context.Context) error {
	state, err := c.agent.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(state.Houses) == 0 {
		fmt.Fprintln(c.out, "no auction houses")
		return nil
	}
	for _, name := range slices.Sorted(maps.Keys(state.Houses)) {
		house := state.Houses[name]
		status := ""
		if !house.Connected {
			status = " (disconnected)"
		}
		fmt.Fprintf(c.out, "%s %s:%d%s\n", name, house.Address.Host, house.Address.Port, status)
		for _, listing := range house.Listings {
			leader := listing.LeaderName
			if leader == "" {
				leader = "-"
			}
			fmt.Fprintf(c.out, "  #%d %-20s %8s  %s\n", listing.AuctionID, listing.Item, listing.CurrentBid, leader)
		}
	}
	return nil
}

// printEvents writes each received message until ctx ends or events
// is closed.
func (c *console) printEvents(ctx context.Context, events <-chan agent.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintln(c.out, describe(event))
		}
	}
}

func describe(event agent.Event) string {
	switch message := event.Message.(type) {
	case protocol.AgentMade:
		return "registered as " + message.AccountID
	case protocol.UpdateMoney:
		return fmt.Sprintf("balance %s, held %s", message.Balance, message.TotalHolds)
	case protocol.AuctionList:
		names := slices.Sorted(maps.Keys(message.Houses))
		if len(names) == 0 {
			return "no auction houses open"
		}
		return "auction houses: " + strings.Join(names, ", ")
	case protocol.NewAuctions:
		return fmt.Sprintf("%s has %d open auctions", message.HouseName, len(message.Auctions))
	case protocol.ConfirmBid:
		return fmt.Sprintf("bid on %s at %s %s", message.Item, message.HouseName, acceptance(message.Success))
	case protocol.AuctionWon:
		return fmt.Sprintf("won %s at %s for %s", message.Item, event.House, message.Amount)
	default:
		return fmt.Sprintf("%s from %s", event.Message.Kind(), cmp.Or(event.House, "bank"))
	}
}

func acceptance(success bool) string {
	if success {
		return "accepted"
	}
	return "refused"
}

func parseAuctionID(text string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(text, "#"))
	if err != nil {
		return 0, fmt.Errorf("invalid auction id %q", text)
	}
	return id, nil
}
