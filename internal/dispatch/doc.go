// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch moves Chat Events from worker goroutines to the render loop.
//
// # Key Types
//
//   - Queue: unbounded MPSC FIFO, the only structure written by many goroutines
//   - Poster: validated producer API (system, chat, file offer)
//   - EventMsg / StoppedMsg: Bubble Tea messages produced by WaitForEvent
//
// # Usage
//
// Producers post from any goroutine:
//
//	q := dispatch.NewQueue()
//	p := dispatch.NewPoster(q)
//	_ = p.PostChatEvent("alice", "hi", false)
//
// The render loop drains one event per WaitForEvent and re-arms it:
//
//	case dispatch.EventMsg:
//	    m.render(msg.Event)
//	    return m, dispatch.WaitForEvent(ctx, q)
package dispatch
