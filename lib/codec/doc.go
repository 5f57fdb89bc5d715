// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the clearinghouse's CBOR configuration.
//
// Every peer connection (agent↔bank, house↔bank, agent↔house) is a
// stream of CBOR data items. CBOR is self-delimiting, so the stream
// needs no extra framing: a reader decodes one item, and that item is
// one message envelope.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so a
// message always produces the same bytes. Types implementing
// encoding.TextMarshaler travel as CBOR text strings; this is how
// decimal.Decimal amounts appear on the wire ("25", "100.50") rather
// than as an opaque binary blob.
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
package codec
