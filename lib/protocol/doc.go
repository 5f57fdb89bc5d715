// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the closed set of messages exchanged by the
// bank, auction houses, and agents.
//
// [Message] is a sealed interface: only the types in this package
// implement it, so a type switch over Message sees every variant that
// can arrive. Each variant is an immutable value type with cbor struct
// tags; none carries behavior.
//
// On the wire a message is one CBOR data item, an envelope holding the
// variant's [Kind] and its encoded body:
//
//	{"kind": "new_bid", "body": {"item": "lamp", "auction_id": 1, ...}}
//
// [Decode] turns an envelope back into the concrete variant. An
// envelope with an unknown kind or a body that does not fit the kind
// is reported as an error wrapping [ErrMalformed]; the stream itself is
// still intact and the next envelope can be read.
package protocol
