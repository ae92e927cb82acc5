// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package network

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("network: connection closed")

// Sink receives parsed inbound traffic. dispatch.Poster satisfies it.
type Sink interface {
	PostSystemEvent(message string) error
	PostChatEvent(sender, message string, isOwn bool) error
	PostFileOffer(fileName string) error
}

// Progress reports bytes written so far out of total. It is called from the
// sending goroutine after each chunk.
type Progress func(sent, total int64)

// Conn is an established connection to the chat peer.
type Conn interface {
	// SendText sends one line of chat text.
	SendText(ctx context.Context, text string) error

	// SendFile streams the file at path to the peer. progress may be nil.
	SendFile(ctx context.Context, path string, progress Progress) error

	// ReceiveLoop reads inbound traffic until the connection ends or ctx
	// is done, posting each parsed unit to sink.
	ReceiveLoop(ctx context.Context, sink Sink) error

	// Close ends the connection. Safe to call more than once.
	Close() error
}

// Dialer opens a connection to address:port.
type Dialer func(ctx context.Context, address string, port int) (Conn, error)
