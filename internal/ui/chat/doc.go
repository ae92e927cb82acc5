// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the chat screen: the consumer of the dispatch queue.
//
// Everything here runs inside Bubble Tea's Update loop. The model arms
// dispatch.WaitForEvent once in Init and again after every EventMsg, so
// events are rendered one at a time, in queue order, on the render loop.
// Each event becomes a row in one of three treatments:
//
//   - system lines, centered
//   - the user's own messages, right-aligned with no label
//   - peer messages, left-aligned under the sender's name
//
// File offers are system rows rendered as "<name> (download)" controls.
// Tab and Shift+Tab move focus between them and Enter opens a destination
// prompt. The copy itself runs as a tea.Cmd off the render loop and ends in
// a confirmation or error modal.
//
// While outbound transfers run, the header shows the newest one and its
// progress, refreshed on a tick until none are pending.
//
// # Keys
//
//	Enter            send the input, or download the focused file
//	Tab / Shift+Tab  move between file offers
//	Ctrl+O           choose a file to send
//	Ctrl+X           cancel the newest running transfer
//	PgUp / PgDn      scroll the history
//	Esc              close the prompt, picker or modal
//	Ctrl+C           quit
package chat
