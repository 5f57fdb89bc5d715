// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "github.com/shopspring/decimal"

// Message is one protocol message. The unexported method seals the
// interface to this package.
type Message interface {
	Kind() Kind
	sealed()
}

// Kind is the wire tag of a message variant.
type Kind string

const (
	KindNewAgent           Kind = "new_agent"
	KindAgentMade          Kind = "agent_made"
	KindNewAuctionHouse    Kind = "new_auction_house"
	KindAuctionHouseMade   Kind = "auction_house_made"
	KindAuctionList        Kind = "auction_list"
	KindRegisterAgent      Kind = "register_agent"
	KindNewAuctions        Kind = "new_auctions"
	KindNewBid             Kind = "new_bid"
	KindConfirmBid         Kind = "confirm_bid"
	KindAuctionWon         Kind = "auction_won"
	KindNewHold            Kind = "new_hold"
	KindConfirmHold        Kind = "confirm_hold"
	KindEndHold            Kind = "end_hold"
	KindAuctionOver        Kind = "auction_over"
	KindUpdateMoney        Kind = "update_money"
	KindCloseAgent         Kind = "close_agent"
	KindAuctionHouseClosed Kind = "auction_house_closed"
)

// Address is where an auction house accepts agent connections.
type Address struct {
	Host string `cbor:"host"`
	Port int    `cbor:"port"`
}

// Listing is one open auction as shown to agents. LeaderName is empty
// while nobody has a confirmed bid.
type Listing struct {
	Item       string          `cbor:"item"`
	AuctionID  int             `cbor:"auction_id"`
	CurrentBid decimal.Decimal `cbor:"current_bid"`
	LeaderName string          `cbor:"leader_name"`
}

// NewAgent registers an agent with the bank. Agent→Bank.
type NewAgent struct {
	Name            string          `cbor:"name"`
	StartingBalance decimal.Decimal `cbor:"starting_balance"`
}

// AgentMade carries the account id the bank assigned. Bank→Agent.
type AgentMade struct {
	AccountID string `cbor:"account_id"`
}

// NewAuctionHouse registers an auction house with the bank.
// ListenPort is where the house accepts agents. House→Bank.
type NewAuctionHouse struct {
	Name       string `cbor:"name"`
	ListenPort int    `cbor:"listen_port"`
}

// AuctionHouseMade carries the house's account id. Bank→House.
type AuctionHouseMade struct {
	AccountID string `cbor:"account_id"`
}

// AuctionList is the directory of auction houses, keyed by house
// name. Bank→Agent.
type AuctionList struct {
	Houses map[string]Address `cbor:"houses"`
}

// RegisterAgent introduces an agent to an auction house. Agent→House.
type RegisterAgent struct {
	AccountID string `cbor:"account_id"`
	Name      string `cbor:"name"`
}

// NewAuctions is a full snapshot of a house's open auctions.
// House→Agent.
type NewAuctions struct {
	HouseName string    `cbor:"house_name"`
	Auctions  []Listing `cbor:"auctions"`
}

// NewBid is a bid attempt. Agent→House.
type NewBid struct {
	Item      string          `cbor:"item"`
	AuctionID int             `cbor:"auction_id"`
	Amount    decimal.Decimal `cbor:"amount"`
	AccountID string          `cbor:"account_id"`
}

// ConfirmBid reports whether a bid became the leading bid.
// House→Agent.
type ConfirmBid struct {
	Success   bool   `cbor:"success"`
	Item      string `cbor:"item"`
	HouseName string `cbor:"house_name"`
}

// AuctionWon tells the leading agent it won an expired auction.
// House→Agent.
type AuctionWon struct {
	Item   string          `cbor:"item"`
	Amount decimal.Decimal `cbor:"amount"`
}

// NewHold asks the bank to reserve funds for a pending bid.
// House→Bank.
type NewHold struct {
	AccountID string          `cbor:"account_id"`
	Amount    decimal.Decimal `cbor:"amount"`
	HoldKey   string          `cbor:"hold_key"`
	AuctionID int             `cbor:"auction_id"`
}

// ConfirmHold answers a NewHold. AccountID and AuctionID let the house
// find the pending bid it belongs to. Bank→House.
type ConfirmHold struct {
	Success   bool   `cbor:"success"`
	HoldKey   string `cbor:"hold_key"`
	AccountID string `cbor:"account_id"`
	AuctionID int    `cbor:"auction_id"`
}

// EndHold releases a hold without moving funds. Amount is the amount
// the house believes the hold reserves. House→Bank.
type EndHold struct {
	AccountID string          `cbor:"account_id"`
	Amount    decimal.Decimal `cbor:"amount"`
	HoldKey   string          `cbor:"hold_key"`
}

// AuctionOver settles a won auction: the agent's hold becomes a
// transfer to the house. House→Bank.
type AuctionOver struct {
	HouseAccountID string          `cbor:"house_account_id"`
	AgentAccountID string          `cbor:"agent_account_id"`
	HoldKey        string          `cbor:"hold_key"`
	Amount         decimal.Decimal `cbor:"amount"`
}

// UpdateMoney pushes an account's balance and total holds.
// Bank→Agent and Bank→House.
type UpdateMoney struct {
	Balance    decimal.Decimal `cbor:"balance"`
	TotalHolds decimal.Decimal `cbor:"total_holds"`
}

// CloseAgent announces that an agent is leaving. Agent→Bank and
// Agent→House.
type CloseAgent struct {
	AccountID string `cbor:"account_id"`
}

// AuctionHouseClosed announces that a house is leaving. House→Bank.
type AuctionHouseClosed struct {
	AccountID string `cbor:"account_id"`
}

func (NewAgent) Kind() Kind           { return KindNewAgent }
func (AgentMade) Kind() Kind          { return KindAgentMade }
func (NewAuctionHouse) Kind() Kind    { return KindNewAuctionHouse }
func (AuctionHouseMade) Kind() Kind   { return KindAuctionHouseMade }
func (AuctionList) Kind() Kind        { return KindAuctionList }
func (RegisterAgent) Kind() Kind      { return KindRegisterAgent }
func (NewAuctions) Kind() Kind        { return KindNewAuctions }
func (NewBid) Kind() Kind             { return KindNewBid }
func (ConfirmBid) Kind() Kind         { return KindConfirmBid }
func (AuctionWon) Kind() Kind         { return KindAuctionWon }
func (NewHold) Kind() Kind            { return KindNewHold }
func (ConfirmHold) Kind() Kind        { return KindConfirmHold }
func (EndHold) Kind() Kind            { return KindEndHold }
func (AuctionOver) Kind() Kind        { return KindAuctionOver }
func (UpdateMoney) Kind() Kind        { return KindUpdateMoney }
func (CloseAgent) Kind() Kind         { return KindCloseAgent }
func (AuctionHouseClosed) Kind() Kind { return KindAuctionHouseClosed }

func (NewAgent) sealed()           {}
func (AgentMade) sealed()          {}
func (NewAuctionHouse) sealed()    {}
func (AuctionHouseMade) sealed()   {}
func (AuctionList) sealed()        {}
func (RegisterAgent) sealed()      {}
func (NewAuctions) sealed()        {}
func (NewBid) sealed()             {}
func (ConfirmBid) sealed()         {}
func (AuctionWon) sealed()         {}
func (NewHold) sealed()            {}
func (ConfirmHold) sealed()        {}
func (EndHold) sealed()            {}
func (AuctionOver) sealed()        {}
func (UpdateMoney) sealed()        {}
func (CloseAgent) sealed()         {}
func (AuctionHouseClosed) sealed() {}
