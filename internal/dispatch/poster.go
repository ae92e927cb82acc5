// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"fmt"

	"github.com/jeranaias/opentalk-tui/internal/event"
)

// Poster is the producer API shared by the network layer and local actions.
// Every event is validated before it is queued.
type Poster struct {
	q *Queue
}

// NewPoster returns a Poster that feeds q.
func NewPoster(q *Queue) *Poster {
	return &Poster{q: q}
}

// PostSystemEvent queues a system message.
func (p *Poster) PostSystemEvent(message string) error {
	e, err := event.NewSystem(message)
	if err != nil {
		return fmt.Errorf("post system event: %w", err)
	}
	return p.q.Enqueue(e)
}

// PostChatEvent queues a text message from sender.
func (p *Poster) PostChatEvent(sender, message string, isOwn bool) error {
	e, err := event.NewChat(sender, message, isOwn)
	if err != nil {
		return fmt.Errorf("post chat event: %w", err)
	}
	return p.q.Enqueue(e)
}

// PostFileOffer queues a downloadable file control.
func (p *Poster) PostFileOffer(fileName string) error {
	e, err := event.NewFileOffer(fileName)
	if err != nil {
		return fmt.Errorf("post file offer: %w", err)
	}
	return p.q.Enqueue(e)
}

// Postf is a convenience for formatted system messages.
func (p *Poster) Postf(format string, args ...any) error {
	return p.PostSystemEvent(fmt.Sprintf(format, args...))
}
