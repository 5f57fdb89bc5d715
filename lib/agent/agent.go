// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/bureau-foundation/clearinghouse/lib/peer"
	"github.com/bureau-foundation/clearinghouse/lib/protocol"
	"github.com/bureau-foundation/clearinghouse/lib/transport"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownHouse is returned for a house not in the current
	// directory.
	ErrUnknownHouse = errors.New("unknown auction house")

	// ErrUnknownAuction is returned for an auction the house is not
	// currently listing.
	ErrUnknownAuction = errors.New("unknown auction")

	// ErrInsufficientFunds is returned by BidNext when the bid would
	// exceed the balance not already held.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrStillLeading is returned by Close while the agent leads an
	// auction it would then walk away from.
	ErrStillLeading = errors.New("still the leading bidder")

	// ErrNotRegistered is returned for operations attempted before
	// the bank has assigned an account.
	ErrNotRegistered = errors.New("not registered with the bank")

	// ErrClosed is returned for bids after Close.
	ErrClosed = errors.New("agent closed")

	// ErrBankLost is returned by Run when the bank connection fails.
	ErrBankLost = errors.New("bank connection lost")
)

// closeGrace bounds how long Run waits for the bank to acknowledge a
// Close by dropping the connection.
const closeGrace = 5 * time.Second

// DefaultBidIncrement is how far BidNext goes above the current bid.
var DefaultBidIncrement = decimal.NewFromInt(1)

// Config configures an Agent.
type Config struct {
	Name            string
	StartingBalance decimal.Decimal

	// BankAddress is the bank's "host:port".
	BankAddress string

	// Dialer connects to the bank and to auction houses. Defaults to
	// a TCP dialer.
	Dialer transport.Dialer

	// DialTimeout bounds each connection attempt. Default 10s.
	DialTimeout time.Duration

	// BidIncrement is added to the current bid by BidNext.
	BidIncrement decimal.Decimal

	// EventBuffer is the capacity of the Events channel. Events are
	// dropped when it is full. Default 64.
	EventBuffer int

	QueueDepth int
	Logger     *slog.Logger
}

// Event is one message received by the agent, tagged with the house
// it came from (empty for the bank).
type Event struct {
	House   string
	Message protocol.Message
}

// Outcome is the last bid result reported by a house for one item.
type Outcome struct {
	House   string
	Item    string
	Success bool
}

// Win is an auction the agent won.
type Win struct {
	House  string
	Item   string
	Amount decimal.Decimal
}

// State is a copy of the agent's cached view.
type State struct {
	AccountID  string
	Name       string
	Balance    decimal.Decimal
	TotalHolds decimal.Decimal

	// Houses maps house name to its address and listings.
	Houses   map[string]House
	Outcomes []Outcome
	Won      []Win
}

// Available is the balance not held against pending or leading bids.
func (s State) Available() decimal.Decimal {
	return s.Balance.Sub(s.TotalHolds)
}

// House is one auction house as the agent sees it.
type House struct {
	Name      string
	Address   protocol.Address
	Connected bool
	Listings  []protocol.Listing
}

type house struct {
	name     string
	address  protocol.Address
	conn     *peer.Conn
	listings []protocol.Listing
}

type outcomeKey struct {
	house string
	item  string
}

// Agent is a bidding client.
type Agent struct {
	name            string
	startingBalance decimal.Decimal
	bankAddress     string
	dialer          transport.Dialer
	dialTimeout     time.Duration
	increment       decimal.Decimal
	logger          *slog.Logger

	node   *peer.Node
	events chan Event
	closed chan struct{}

	// Dispatcher-owned.
	bank       *peer.Conn
	accountID  string
	balance    decimal.Decimal
	totalHolds decimal.Decimal
	houses     map[string]*house
	outcomes   map[outcomeKey]bool
	won        []Win
	leaving    bool
}

// New creates an agent. Start it with Run.
func New(config Config) *Agent {
	if config.Dialer == nil {
		config.Dialer = &transport.TCPDialer{}
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 10 * time.Second
	}
	if config.BidIncrement.IsZero() {
		config.BidIncrement = DefaultBidIncrement
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	a := &Agent{
		name:            config.Name,
		startingBalance: config.StartingBalance,
		bankAddress:     config.BankAddress,
		dialer:          config.Dialer,
		dialTimeout:     config.DialTimeout,
		increment:       config.BidIncrement,
		logger:          config.Logger.With("agent", config.Name),
		events:          make(chan Event, config.EventBuffer),
		closed:          make(chan struct{}),
		houses:          make(map[string]*house),
		outcomes:        make(map[outcomeKey]bool),
	}
	a.node = peer.New(peer.Config{
		Role:       "agent",
		Handler:    peer.HandlerFunc(a.handle),
		QueueDepth: config.QueueDepth,
		Logger:     a.logger,
	})
	return a
}

// Events delivers received messages for display. Slow readers miss
// events; cached state is unaffected.
func (a *Agent) Events() <-chan Event { return a.events }

// Run registers with the bank and processes messages until ctx is
// cancelled, the bank connection fails, or Close succeeds.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, a.dialTimeout)
	bank, err := a.node.Dial(dialCtx, a.dialer, a.bankAddress, protocol.NewAgent{
		Name:            a.name,
		StartingBalance: a.startingBalance,
	})
	dialCancel()
	if err != nil {
		return err
	}
	a.bank = bank
	a.node.Listen(ctx, bank)

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.node.Dispatch(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case <-a.closed:
		// The bank drops the connection once it has the CloseAgent.
		grace := time.NewTimer(closeGrace)
		select {
		case <-bank.Done():
		case <-grace.C:
			a.logger.Warn("bank did not close the connection")
		case <-ctx.Done():
		}
		grace.Stop()
		a.logger.Info("agent closed")
	case <-bank.Done():
		runErr = ErrBankLost
		a.logger.Error("bank connection lost")
	}
	cancel()
	<-dispatchDone
	a.node.Wait()
	return runErr
}

func (a *Agent) handle(ctx context.Context, delivery peer.Delivery) {
	from := a.houseOn(delivery.From)
	houseName := ""
	if from != nil {
		houseName = from.name
	}

	switch message := delivery.Message.(type) {
	case protocol.AgentMade:
		a.accountID = message.AccountID
		a.logger.Info("bank account assigned", "account", message.AccountID)
	case protocol.UpdateMoney:
		a.balance = message.Balance
		a.totalHolds = message.TotalHolds
	case protocol.AuctionList:
		if !a.leaving {
			a.syncDirectory(ctx, message)
		}
	case protocol.NewAuctions:
		if from == nil {
			delivery.From.Logger().Warn("listings from unknown connection", "house", message.HouseName)
			return
		}
		if !a.leaving {
			from.listings = slices.Clone(message.Auctions)
		}
	case protocol.ConfirmBid:
		a.outcomes[outcomeKey{house: houseName, item: message.Item}] = message.Success
		a.logger.Info("bid outcome", "house", houseName, "item", message.Item, "success", message.Success)
	case protocol.AuctionWon:
		a.won = append(a.won, Win{House: houseName, Item: message.Item, Amount: message.Amount})
		a.logger.Info("auction won", "house", houseName, "item", message.Item, "amount", message.Amount)
	default:
		delivery.From.Logger().Warn("agent ignoring message", "kind", delivery.Message.Kind())
		return
	}

	select {
	case a.events <- Event{House: houseName, Message: delivery.Message}:
	default:
	}
}

func (a *Agent) houseOn(conn *peer.Conn) *house {
	for _, h := range a.houses {
		if h.conn == conn {
			return h
		}
	}
	return nil
}

// syncDirectory connects to newly listed houses and drops houses that
// are no longer listed. A house whose address changed is reconnected.
func (a *Agent) syncDirectory(ctx context.Context, list protocol.AuctionList) {
	for name, h := range a.houses {
		address, listed := list.Houses[name]
		if listed && address == h.address {
			continue
		}
		a.logger.Info("dropping auction house", "house", name)
		h.conn.Close()
		delete(a.houses, name)
	}

	for _, name := range slices.Sorted(maps.Keys(list.Houses)) {
		if _, connected := a.houses[name]; connected {
			continue
		}
		address := list.Houses[name]
		conn, err := a.connectHouse(ctx, address)
		if err != nil {
			a.logger.Warn("could not reach auction house", "house", name, "error", err)
			continue
		}
		a.houses[name] = &house{name: name, address: address, conn: conn}
		a.node.Listen(ctx, conn)
		a.logger.Info("joined auction house", "house", name, "host", address.Host, "port", address.Port)
	}
}

func (a *Agent) connectHouse(ctx context.Context, address protocol.Address) (*peer.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, a.dialTimeout)
	defer cancel()
	target := net.JoinHostPort(address.Host, strconv.Itoa(address.Port))
	return a.node.Dial(ctx, a.dialer, target, protocol.RegisterAgent{AccountID: a.accountID, Name: a.name})
}

// Bid sends a bid for amount on one of a house's listed auctions. The
// outcome arrives later as a ConfirmBid event.
func (a *Agent) Bid(ctx context.Context, houseName string, auctionID int, amount decimal.Decimal) error {
	var bidErr error
	err := a.node.Run(ctx, func(context.Context) {
		bidErr = a.bid(houseName, auctionID, func(decimal.Decimal) (decimal.Decimal, error) {
			return amount, nil
		})
	})
	return errors.Join(err, bidErr)
}

// BidNext bids the auction's current bid plus the configured increment
// and returns the amount bid. It refuses a bid the agent's unheld
// balance does not cover.
func (a *Agent) BidNext(ctx context.Context, houseName string, auctionID int) (decimal.Decimal, error) {
	var (
		bid    decimal.Decimal
		bidErr error
	)
	err := a.node.Run(ctx, func(context.Context) {
		bidErr = a.bid(houseName, auctionID, func(current decimal.Decimal) (decimal.Decimal, error) {
			bid = current.Add(a.increment)
			if available := a.balance.Sub(a.totalHolds); bid.GreaterThan(available) {
				return bid, fmt.Errorf("bid of %s with %s available: %w", bid, available, ErrInsufficientFunds)
			}
			return bid, nil
		})
	})
	return bid, errors.Join(err, bidErr)
}

func (a *Agent) bid(houseName string, auctionID int, choose func(current decimal.Decimal) (decimal.Decimal, error)) error {
	if a.leaving {
		return ErrClosed
	}
	if a.accountID == "" {
		return ErrNotRegistered
	}
	h, ok := a.houses[houseName]
	if !ok {
		return fmt.Errorf("%q: %w", houseName, ErrUnknownHouse)
	}
	index := slices.IndexFunc(h.listings, func(listing protocol.Listing) bool {
		return listing.AuctionID == auctionID
	})
	if index < 0 {
		return fmt.Errorf("%s #%d: %w", houseName, auctionID, ErrUnknownAuction)
	}
	listing := h.listings[index]
	amount, err := choose(listing.CurrentBid)
	if err != nil {
		return err
	}
	a.logger.Info("bidding", "house", houseName, "auction", auctionID, "item", listing.Item, "amount", amount)
	return h.conn.Send(protocol.NewBid{
		Item:      listing.Item,
		AuctionID: auctionID,
		Amount:    amount,
		AccountID: a.accountID,
	})
}

// Close leaves the bank and every house. It refuses while the agent
// leads any listed auction. After a successful Close, Run returns.
//
// Listings name their leader, not the leader's account, so leadership
// is a listing led by this agent's name on an item whose last bid
// outcome at that house was accepted. Another agent registered under
// the same name cannot block Close unless this agent also holds an
// accepted bid for that item.
func (a *Agent) Close(ctx context.Context) error {
	var closeErr error
	err := a.node.Run(ctx, func(context.Context) {
		if a.leaving {
			return
		}
		for _, h := range a.houses {
			for _, listing := range h.listings {
				if a.leads(h.name, listing) {
					closeErr = fmt.Errorf("%s at %s: %w", listing.Item, h.name, ErrStillLeading)
					return
				}
			}
		}
		a.leaving = true
		goodbye := protocol.CloseAgent{AccountID: a.accountID}
		for _, h := range a.houses {
			h.conn.Send(goodbye)
			h.listings = nil
		}
		a.bank.Send(goodbye)
		close(a.closed)
	})
	return errors.Join(err, closeErr)
}

func (a *Agent) leads(houseName string, listing protocol.Listing) bool {
	return listing.LeaderName == a.name && a.outcomes[outcomeKey{house: houseName, item: listing.Item}]
}

// Snapshot returns a copy of the agent's cached state.
func (a *Agent) Snapshot(ctx context.Context) (State, error) {
	var state State
	err := a.node.Run(ctx, func(context.Context) {
		state = State{
			AccountID:  a.accountID,
			Name:       a.name,
			Balance:    a.balance,
			TotalHolds: a.totalHolds,
			Houses:     make(map[string]House, len(a.houses)),
			Won:        slices.Clone(a.won),
		}
		for name, h := range a.houses {
			state.Houses[name] = House{
				Name:      name,
				Address:   h.address,
				Connected: !h.conn.Stopped(),
				Listings:  slices.Clone(h.listings),
			}
		}
		for key, success := range a.outcomes {
			state.Outcomes = append(state.Outcomes, Outcome{House: key.house, Item: key.item, Success: success})
		}
		slices.SortFunc(state.Outcomes, func(x, y Outcome) int {
			return cmp.Or(cmp.Compare(x.House, y.House), cmp.Compare(x.Item, y.Item))
		})
	})
	return state, err
}
