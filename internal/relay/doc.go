// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package relay implements the opentalk-relay server: a WebSocket hub that
// forwards chat and file frames between connected peers.
//
// Every connection must open with a hello frame carrying the peer's display
// name. After that the relay stamps the sender onto chat and file_begin
// frames, forwards everything to every other peer, and announces joins and
// leaves as system frames. Peers whose send buffer fills up are dropped.
package relay
