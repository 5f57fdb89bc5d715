// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auction

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/clearinghouse/lib/clock"
	"github.com/bureau-foundation/clearinghouse/lib/protocol"
	"github.com/shopspring/decimal"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultSlots    = 3
	DefaultDuration = 30 * time.Second
)

// DefaultFloor is the opening bid of every auction.
var DefaultFloor = decimal.NewFromInt(20)

// Target says who an Effect is for.
type Target int

const (
	// ToBank effects go to the bank connection.
	ToBank Target = iota
	// ToAgent effects go to the agent named by Effect.AccountID.
	ToAgent
)

// Effect is one message the engine's caller must send.
type Effect struct {
	To        Target
	AccountID string
	Message   protocol.Message
}

func toBank(message protocol.Message) Effect {
	return Effect{To: ToBank, Message: message}
}

func toAgent(accountID string, message protocol.Message) Effect {
	return Effect{To: ToAgent, AccountID: accountID, Message: message}
}

// Bidder identifies an agent.
type Bidder struct {
	AccountID string
	Name      string
}

// HoldKey names the bank hold for one agent's bid in one auction. At
// most one hold exists per key.
func HoldKey(agentID, houseID string, auctionID int) string {
	return agentID + ":" + houseID + ":" + strconv.Itoa(auctionID)
}

// Config configures an Engine.
type Config struct {
	// HouseName is reported in ConfirmBid and NewAuctions.
	HouseName string

	Slots    int
	Floor    decimal.Decimal
	Duration time.Duration

	Items  ItemSource
	Clock  clock.Clock
	Logger *slog.Logger
}

type pendingBid struct {
	bidder Bidder
	amount decimal.Decimal
}

type auction struct {
	item       string
	id         int
	currentBid decimal.Decimal
	leader     Bidder
	pending    []pendingBid
	deadline   time.Time

	// generation identifies the live timer. The timer callback stores
	// its generation in fired; the auction is expired when the two
	// match, so a superseded timer that fires late has no effect.
	generation int64
	fired      atomic.Int64
	timer      *clock.Timer
}

func (a *auction) expired() bool {
	return a.fired.Load() == a.generation
}

func (a *auction) pendingIndex(accountID string) int {
	return slices.IndexFunc(a.pending, func(bid pendingBid) bool {
		return bid.bidder.AccountID == accountID
	})
}

// Auction is a point-in-time copy of one auction.
type Auction struct {
	Item       string
	ID         int
	CurrentBid decimal.Decimal
	Leader     Bidder
	Pending    int
	Deadline   time.Time
	Expired    bool
}

// Engine is one auction house's panel of auctions.
type Engine struct {
	houseName string
	houseID   string
	floor     decimal.Decimal
	duration  time.Duration
	items     ItemSource
	clock     clock.Clock
	logger    *slog.Logger

	slots     []*auction
	lastID    int
	accepting bool

	// orphans holds the amounts of bids that were still awaiting a
	// hold decision when their auction finalized, keyed by hold key,
	// so a late successful hold is released for the right amount.
	orphans map[string]decimal.Decimal
}

// New creates an engine and fills every slot with a fresh auction.
func New(config Config) *Engine {
	if config.Slots <= 0 {
		config.Slots = DefaultSlots
	}
	if config.Floor.IsZero() {
		config.Floor = DefaultFloor
	}
	if config.Duration <= 0 {
		config.Duration = DefaultDuration
	}
	if config.Items == nil {
		config.Items = NewCatalog(nil)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	e := &Engine{
		houseName: config.HouseName,
		floor:     config.Floor,
		duration:  config.Duration,
		items:     config.Items,
		clock:     config.Clock,
		logger:    config.Logger,
		slots:     make([]*auction, config.Slots),
		accepting: true,
		orphans:   make(map[string]decimal.Decimal),
	}
	for i := range e.slots {
		e.slots[i] = e.open()
	}
	return e
}

func (e *Engine) open() *auction {
	e.lastID++
	a := &auction{
		item:       e.items.Next(),
		id:         e.lastID,
		currentBid: e.floor,
	}
	a.fired.Store(-1)
	e.restart(a)
	return a
}

// restart moves the auction's deadline to now plus the auction
// duration and clears any expiry.
func (e *Engine) restart(a *auction) {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.generation++
	generation := a.generation
	a.deadline = e.clock.Now().Add(e.duration)
	a.timer = e.clock.AfterFunc(e.duration, func() {
		a.fired.Store(generation)
	})
}

// SetHouseAccount records the bank account id of the house. Bids are
// refused until it is set, since hold keys and settlements need it.
func (e *Engine) SetHouseAccount(id string) {
	e.houseID = id
}

// HouseAccount returns the id set by SetHouseAccount.
func (e *Engine) HouseAccount() string { return e.houseID }

func (e *Engine) find(auctionID int) *auction {
	for _, a := range e.slots {
		if a != nil && a.id == auctionID {
			return a
		}
	}
	return nil
}

func (e *Engine) refuse(bidder Bidder, item string) []Effect {
	return []Effect{toAgent(bidder.AccountID, protocol.ConfirmBid{
		Success:   false,
		Item:      item,
		HouseName: e.houseName,
	})}
}

// SubmitBid validates a bid. A bid that does not beat the current bid
// is refused at once without involving the bank. Otherwise the bid
// waits for a hold decision, the deadline restarts, and a NewHold is
// returned for the bank.
func (e *Engine) SubmitBid(bidder Bidder, bid protocol.NewBid) []Effect {
	logger := e.logger.With("account", bidder.AccountID, "auction", bid.AuctionID, "amount", bid.Amount)

	if e.houseID == "" {
		logger.Warn("bid refused before house account assigned")
		return e.refuse(bidder, bid.Item)
	}
	a := e.find(bid.AuctionID)
	if a == nil {
		logger.Info("bid for unknown auction")
		return e.refuse(bidder, bid.Item)
	}
	if !bid.Amount.GreaterThan(a.currentBid) {
		logger.Info("bid does not beat current bid", "current_bid", a.currentBid)
		return e.refuse(bidder, a.item)
	}
	if a.pendingIndex(bidder.AccountID) >= 0 {
		// One hold key covers one pending bid.
		logger.Info("bid refused while previous bid awaits hold")
		return e.refuse(bidder, a.item)
	}

	a.pending = append(a.pending, pendingBid{bidder: bidder, amount: bid.Amount})
	e.restart(a)
	logger.Debug("bid forwarded for hold")
	return []Effect{toBank(protocol.NewHold{
		AccountID: bidder.AccountID,
		Amount:    bid.Amount,
		HoldKey:   HoldKey(bidder.AccountID, e.houseID, a.id),
		AuctionID: a.id,
	})}
}

// ConfirmHold applies the bank's hold decision for a pending bid.
// changed reports whether the auction's leader or current bid moved.
func (e *Engine) ConfirmHold(confirm protocol.ConfirmHold) (effects []Effect, changed bool) {
	logger := e.logger.With("account", confirm.AccountID, "auction", confirm.AuctionID, "success", confirm.Success)

	a := e.find(confirm.AuctionID)
	if a == nil {
		amount, orphaned := e.orphans[confirm.HoldKey]
		delete(e.orphans, confirm.HoldKey)
		if confirm.Success {
			logger.Info("releasing hold for finished auction")
			if !orphaned {
				amount = decimal.Zero
			}
			return []Effect{toBank(protocol.EndHold{
				AccountID: confirm.AccountID,
				Amount:    amount,
				HoldKey:   confirm.HoldKey,
			})}, false
		}
		return nil, false
	}

	index := a.pendingIndex(confirm.AccountID)
	if index < 0 {
		logger.Warn("hold decision with no pending bid")
		return nil, false
	}
	bid := a.pending[index]
	a.pending = slices.Delete(a.pending, index, index+1)

	if !confirm.Success {
		logger.Info("bank declined hold")
		return nil, false
	}

	e.restart(a)
	key := HoldKey(bid.bidder.AccountID, e.houseID, a.id)

	if !bid.amount.GreaterThan(a.currentBid) {
		logger.Info("confirmed bid overtaken", "amount", bid.amount, "current_bid", a.currentBid)
		return []Effect{
			toAgent(bid.bidder.AccountID, protocol.ConfirmBid{Success: false, Item: a.item, HouseName: e.houseName}),
			toBank(protocol.EndHold{AccountID: bid.bidder.AccountID, Amount: bid.amount, HoldKey: key}),
		}, false
	}

	previous := a.leader
	previousBid := a.currentBid
	a.leader = bid.bidder
	a.currentBid = bid.amount
	logger.Info("new leader", "amount", bid.amount, "previous", previous.AccountID)

	effects = append(effects, toAgent(bid.bidder.AccountID, protocol.ConfirmBid{
		Success:   true,
		Item:      a.item,
		HouseName: e.houseName,
	}))
	if previous.AccountID != "" && previous.AccountID != bid.bidder.AccountID {
		effects = append(effects, toBank(protocol.EndHold{
			AccountID: previous.AccountID,
			Amount:    previousBid,
			HoldKey:   HoldKey(previous.AccountID, e.houseID, a.id),
		}))
	}
	return effects, true
}

// Sweep finalizes every expired auction. An auction with a leader
// produces an AuctionOver for the bank and an AuctionWon for the
// leader. Finished slots are refilled while the engine accepts new
// auctions and emptied otherwise. changed reports whether any slot
// finished.
func (e *Engine) Sweep() (effects []Effect, changed bool) {
	for i, a := range e.slots {
		if a == nil || !a.expired() {
			continue
		}
		changed = true
		a.timer.Stop()

		if a.leader.AccountID != "" {
			e.logger.Info("auction won",
				"auction", a.id,
				"item", a.item,
				"account", a.leader.AccountID,
				"amount", a.currentBid,
			)
			effects = append(effects,
				toBank(protocol.AuctionOver{
					HouseAccountID: e.houseID,
					AgentAccountID: a.leader.AccountID,
					HoldKey:        HoldKey(a.leader.AccountID, e.houseID, a.id),
					Amount:         a.currentBid,
				}),
				toAgent(a.leader.AccountID, protocol.AuctionWon{Item: a.item, Amount: a.currentBid}),
			)
		} else {
			e.logger.Info("auction ended without bids", "auction", a.id, "item", a.item)
		}
		for _, bid := range a.pending {
			e.orphans[HoldKey(bid.bidder.AccountID, e.houseID, a.id)] = bid.amount
		}

		if e.accepting {
			e.slots[i] = e.open()
		} else {
			e.slots[i] = nil
		}
	}
	return effects, changed
}

// StopAccepting stops refilling finished slots. Open auctions run to
// completion.
func (e *Engine) StopAccepting() {
	e.accepting = false
}

// Drained reports whether every slot is empty.
func (e *Engine) Drained() bool {
	for _, a := range e.slots {
		if a != nil {
			return false
		}
	}
	return true
}

// Leading reports whether accountID leads any open auction.
func (e *Engine) Leading(accountID string) bool {
	for _, a := range e.slots {
		if a != nil && a.leader.AccountID == accountID {
			return true
		}
	}
	return false
}

// Listings is the panel as agents see it. Empty slots are omitted.
func (e *Engine) Listings() []protocol.Listing {
	listings := make([]protocol.Listing, 0, len(e.slots))
	for _, a := range e.slots {
		if a == nil {
			continue
		}
		listings = append(listings, protocol.Listing{
			Item:       a.item,
			AuctionID:  a.id,
			CurrentBid: a.currentBid,
			LeaderName: a.leader.Name,
		})
	}
	return listings
}

// Snapshot returns copies of the open auctions in slot order.
func (e *Engine) Snapshot() []Auction {
	var auctions []Auction
	for _, a := range e.slots {
		if a == nil {
			continue
		}
		auctions = append(auctions, Auction{
			Item:       a.item,
			ID:         a.id,
			CurrentBid: a.currentBid,
			Leader:     a.leader,
			Pending:    len(a.pending),
			Deadline:   a.deadline,
			Expired:    a.expired(),
		})
	}
	return auctions
}

// Stop cancels every auction timer.
func (e *Engine) Stop() {
	for _, a := range e.slots {
		if a != nil && a.timer != nil {
			a.timer.Stop()
		}
	}
}

func (a Auction) String() string {
	return fmt.Sprintf("#%d %s at %s", a.ID, a.Item, a.CurrentBid)
}
