// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/opentalk-tui/internal/event"
)

// =============================================================================
// BUBBLE TEA BINDING
// =============================================================================

// EventMsg delivers one dequeued event to the render loop.
type EventMsg struct {
	Event event.Event
}

// StoppedMsg signals that the queue will deliver nothing more, either
// because it was closed or because ctx ended.
type StoppedMsg struct {
	Err error
}

// WaitForEvent returns a command that blocks off the render loop until the
// next event arrives. The consumer must issue it again after handling each
// EventMsg. Exactly one WaitForEvent may be outstanding per queue.
func WaitForEvent(ctx context.Context, q *Queue) tea.Cmd {
	return func() tea.Msg {
		e, err := q.Next(ctx)
		if err != nil {
			return StoppedMsg{Err: err}
		}
		return EventMsg{Event: e}
	}
}
