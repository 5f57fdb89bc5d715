// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport opens the TCP streams that peer connections run
// over. The bank and auction houses each own a [TCPListener]; agents
// and houses reach the bank, and agents reach houses, through a
// [Dialer]. Tests substitute their own Dialer to observe or refuse
// outbound connections.
package transport
