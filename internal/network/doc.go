// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package network is the client side of the opentalk wire protocol.
//
// A Dialer opens a Conn to the relay. The session reads inbound traffic with
// Conn.ReceiveLoop, which hands each parsed unit to a Sink (in practice a
// dispatch.Poster), and sends with Conn.SendText and Conn.SendFile.
//
// Inbound files are assembled by a transfer.Stager. When a file_end arrives
// the staged file is published and a file offer is posted.
package network
