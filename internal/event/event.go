// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package event defines the Chat Event, the only value that crosses from
// worker goroutines into the render loop.
package event

import (
	"errors"
	"strings"
)

// SystemSender is the reserved sender identity for events produced by the
// client itself rather than by a peer.
const SystemSender = "SYSTEM"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoSender is returned when an event has an empty sender.
	ErrNoSender = errors.New("event: sender is required")

	// ErrNoPayload is returned when neither text nor file name is set.
	ErrNoPayload = errors.New("event: one of text or file name is required")

	// ErrBothPayloads is returned when both text and file name are set.
	ErrBothPayloads = errors.New("event: text and file name are mutually exclusive")

	// ErrFileOfferPayload is returned when the file-offer flag disagrees
	// with the populated payload.
	ErrFileOfferPayload = errors.New("event: file offer must carry a file name and no text")
)

// =============================================================================
// EVENT
// =============================================================================

// Event is one renderable occurrence. It is moved by value from exactly one
// producer into the dispatch queue and consumed once by the render loop.
type Event struct {
	// Sender is the author identity, or SystemSender.
	Sender string

	// Text is the message body. Empty for file offers.
	Text string

	// IsOwn is true when the local user authored the event.
	// Always false for system events.
	IsOwn bool

	// IsFileOffer marks a downloadable file rather than text.
	IsFileOffer bool

	// FileName names the staged file. Set only for file offers.
	FileName string
}

// NewSystem builds a system event carrying text.
func NewSystem(text string) (Event, error) {
	e := Event{Sender: SystemSender, Text: text}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// NewChat builds a text event from a peer or from the local user.
// A chat event addressed from SystemSender is normalized to a system event.
func NewChat(sender, text string, isOwn bool) (Event, error) {
	e := Event{Sender: sender, Text: text, IsOwn: isOwn}.Normalize()
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// NewFileOffer builds a system event offering a staged file for retrieval.
func NewFileOffer(fileName string) (Event, error) {
	e := Event{Sender: SystemSender, IsFileOffer: true, FileName: fileName}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// IsSystem reports whether the event was produced by the client itself.
func (e Event) IsSystem() bool {
	return e.Sender == SystemSender
}

// Normalize returns a copy with ownership cleared on system events.
func (e Event) Normalize() Event {
	if e.IsSystem() {
		e.IsOwn = false
	}
	return e
}

// Validate checks the payload invariants: exactly one of Text or FileName,
// and IsFileOffer set exactly when FileName is.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Sender) == "" {
		return ErrNoSender
	}

	hasText := e.Text != ""
	hasFile := e.FileName != ""

	switch {
	case hasText && hasFile:
		return ErrBothPayloads
	case !hasText && !hasFile:
		return ErrNoPayload
	case e.IsFileOffer != hasFile:
		return ErrFileOfferPayload
	}
	return nil
}
