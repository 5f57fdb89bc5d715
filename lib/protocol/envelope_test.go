// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/bureau-foundation/clearinghouse/lib/codec"
	"github.com/shopspring/decimal"
)

// samples holds one populated value per variant. Its length is checked
// against the decoder table so a new variant cannot be added without a
// sample.
var samples = []Message{
	NewAgent{Name: "ada", StartingBalance: decimal.NewFromInt(100)},
	AgentMade{AccountID: "CL0004"},
	NewAuctionHouse{Name: "sothebys", ListenPort: 7100},
	AuctionHouseMade{AccountID: "AH0008"},
	AuctionList{Houses: map[string]Address{"sothebys": {Host: "127.0.0.1", Port: 7100}}},
	RegisterAgent{AccountID: "CL0004", Name: "ada"},
	NewAuctions{HouseName: "sothebys", Auctions: []Listing{
		{Item: "lamp", AuctionID: 1, CurrentBid: decimal.NewFromInt(20)},
		{Item: "vase", AuctionID: 2, CurrentBid: decimal.RequireFromString("27.5"), LeaderName: "ada"},
	}},
	NewBid{Item: "lamp", AuctionID: 1, Amount: decimal.NewFromInt(25), AccountID: "CL0004"},
	ConfirmBid{Success: true, Item: "lamp", HouseName: "sothebys"},
	AuctionWon{Item: "lamp", Amount: decimal.NewFromInt(25)},
	NewHold{AccountID: "CL0004", Amount: decimal.NewFromInt(25), HoldKey: "CL0004:AH0008:1", AuctionID: 1},
	ConfirmHold{Success: true, HoldKey: "CL0004:AH0008:1", AccountID: "CL0004", AuctionID: 1},
	EndHold{AccountID: "CL0004", Amount: decimal.NewFromInt(25), HoldKey: "CL0004:AH0008:1"},
	AuctionOver{HouseAccountID: "AH0008", AgentAccountID: "CL0004", HoldKey: "CL0004:AH0008:1", Amount: decimal.NewFromInt(25)},
	UpdateMoney{Balance: decimal.NewFromInt(75), TotalHolds: decimal.Zero},
	CloseAgent{AccountID: "CL0004"},
	AuctionHouseClosed{AccountID: "AH0008"},
}

func TestEveryKindRoundTrips(t *testing.T) {
	if len(samples) != len(decoders) {
		t.Fatalf("%d samples for %d kinds", len(samples), len(decoders))
	}

	var stream bytes.Buffer
	encoder := codec.NewEncoder(&stream)
	for _, message := range samples {
		if _, ok := decoders[message.Kind()]; !ok {
			t.Fatalf("no decoder registered for %s", message.Kind())
		}
		if err := Write(encoder, message); err != nil {
			t.Fatalf("Write(%s): %v", message.Kind(), err)
		}
	}

	decoder := codec.NewDecoder(&stream)
	for _, want := range samples {
		got, err := Read(decoder)
		if err != nil {
			t.Fatalf("Read(%s): %v", want.Kind(), err)
		}
		if got.Kind() != want.Kind() {
			t.Fatalf("read %s, want %s", got.Kind(), want.Kind())
		}
		if !sameMessage(got, want) {
			t.Errorf("%s: got %+v, want %+v", want.Kind(), got, want)
		}
	}
}

// sameMessage compares messages, treating decimals by value.
func sameMessage(a, b Message) bool {
	left, err := codec.Marshal(a)
	if err != nil {
		return false
	}
	right, err := codec.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right) && reflect.TypeOf(a) == reflect.TypeOf(b)
}

func TestDecodeUnknownKind(t *testing.T) {
	data, err := codec.Marshal(envelope{Kind: "teleport", Body: mustMarshal(t, map[string]string{})})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := Decode(data); !errors.Is(err, ErrMalformed) {
		t.Errorf("Decode(unknown kind) = %v, want ErrMalformed", err)
	}
}

func TestDecodeBodyMismatch(t *testing.T) {
	data, err := codec.Marshal(envelope{Kind: KindNewBid, Body: mustMarshal(t, "not a bid")})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	_, err = Decode(data)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("Decode(bad body) = %v, want ErrMalformed", err)
	}
	// The offending body is shown in diagnostic notation.
	if !strings.Contains(err.Error(), `"not a bid"`) {
		t.Errorf("error %q does not show the body", err)
	}
}

func TestReadSkipsMalformedEnvelope(t *testing.T) {
	var stream bytes.Buffer
	encoder := codec.NewEncoder(&stream)
	if err := encoder.Encode(envelope{Kind: "teleport", Body: mustMarshal(t, 1)}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := Write(encoder, CloseAgent{AccountID: "CL0004"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	decoder := codec.NewDecoder(&stream)
	if _, err := Read(decoder); !errors.Is(err, ErrMalformed) {
		t.Fatalf("first Read = %v, want ErrMalformed", err)
	}
	message, err := Read(decoder)
	if err != nil {
		t.Fatalf("second Read: %v", err)
	}
	if closing, ok := message.(CloseAgent); !ok || closing.AccountID != "CL0004" {
		t.Errorf("second Read = %#v, want CloseAgent{CL0004}", message)
	}
}

func mustMarshal(t *testing.T, value any) []byte {
	t.Helper()
	data, err := codec.Marshal(value)
	if err != nil {
		t.Fatalf("Marshal(%v): %v", value, err)
	}
	return data
}
