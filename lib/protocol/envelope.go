// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/clearinghouse/lib/codec"
)

// ErrMalformed marks a well-formed CBOR item that is not a valid
// message: an unknown kind, or a body that does not decode as its
// kind. The stream it came from is still usable.
var ErrMalformed = errors.New("malformed message")

// envelope is the wire form of every message.
type envelope struct {
	Kind Kind             `cbor:"kind"`
	Body codec.RawMessage `cbor:"body"`
}

// decoders maps every Kind to the function decoding its body. Adding a
// variant means adding its Kind constant, its Kind/sealed methods, and
// an entry here; TestEveryKindRoundTrips fails until all three exist.
var decoders = map[Kind]func([]byte) (Message, error){
	KindNewAgent:           decodeBody[NewAgent],
	KindAgentMade:          decodeBody[AgentMade],
	KindNewAuctionHouse:    decodeBody[NewAuctionHouse],
	KindAuctionHouseMade:   decodeBody[AuctionHouseMade],
	KindAuctionList:        decodeBody[AuctionList],
	KindRegisterAgent:      decodeBody[RegisterAgent],
	KindNewAuctions:        decodeBody[NewAuctions],
	KindNewBid:             decodeBody[NewBid],
	KindConfirmBid:         decodeBody[ConfirmBid],
	KindAuctionWon:         decodeBody[AuctionWon],
	KindNewHold:            decodeBody[NewHold],
	KindConfirmHold:        decodeBody[ConfirmHold],
	KindEndHold:            decodeBody[EndHold],
	KindAuctionOver:        decodeBody[AuctionOver],
	KindUpdateMoney:        decodeBody[UpdateMoney],
	KindCloseAgent:         decodeBody[CloseAgent],
	KindAuctionHouseClosed: decodeBody[AuctionHouseClosed],
}

func decodeBody[T Message](body []byte) (Message, error) {
	var message T
	if err := codec.Unmarshal(body, &message); err != nil {
		return nil, err
	}
	return message, nil
}

// Write encodes message as one envelope on encoder.
func Write(encoder *codec.Encoder, message Message) error {
	body, err := codec.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding %s body: %w", message.Kind(), err)
	}
	return encoder.Encode(envelope{Kind: message.Kind(), Body: body})
}

// Read decodes the next envelope from decoder. Errors from the stream
// itself (EOF, connection failures, malformed CBOR) are returned
// unchanged; errors about the envelope's content wrap ErrMalformed.
func Read(decoder *codec.Decoder) (Message, error) {
	var raw codec.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}
	return Decode(raw)
}

// Decode converts one encoded envelope into its message variant.
func Decode(data []byte) (Message, error) {
	var wire envelope
	if err := codec.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: not an envelope: %v", ErrMalformed, err)
	}
	decode, ok := decoders[wire.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, wire.Kind)
	}
	message, err := decode(wire.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s body %s: %v", ErrMalformed, wire.Kind, diagnose(wire.Body), err)
	}
	return message, nil
}

// diagnose renders data for a log line, in CBOR diagnostic notation
// when it parses and as hex otherwise.
func diagnose(data []byte) string {
	if text, err := codec.Diagnose(data); err == nil {
		return text
	}
	return fmt.Sprintf("h'%x'", data)
}
