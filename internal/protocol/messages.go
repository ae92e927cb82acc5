// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the JSON frames exchanged between clients and
// the relay.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Client -> Relay
	TypeHello MessageType = "hello"

	// Both directions; the relay stamps Sender on frames it forwards
	TypeChat      MessageType = "chat"
	TypeFileBegin MessageType = "file_begin"
	TypeFileChunk MessageType = "file_chunk"
	TypeFileEnd   MessageType = "file_end"
	TypeFileAbort MessageType = "file_abort"

	// Relay -> Client
	TypeSystem MessageType = "system"
	TypeError  MessageType = "error"
)

// ChunkSize is the payload size of a file_chunk frame.
const ChunkSize = 32 * 1024

// MaxFrameSize bounds a single encoded frame. A base64 chunk plus envelope
// fits comfortably.
const MaxFrameSize = 128 * 1024

// ErrMissingType is returned for frames with no type field.
var ErrMissingType = errors.New("protocol: frame has no type")

// Envelope wraps all WebSocket messages with a type field.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// HelloMessage announces the display name right after connecting.
type HelloMessage struct {
	Name string `json:"name"`
}

// ChatMessage carries one line of text.
type ChatMessage struct {
	Sender string `json:"sender,omitempty"`
	Text   string `json:"text"`
}

// SystemMessage is a relay notice such as a join or leave.
type SystemMessage struct {
	Text string `json:"text"`
}

// FileBeginMessage opens a file transfer. Size is -1 when unknown.
type FileBeginMessage struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Sender string `json:"sender,omitempty"`
}

// FileChunkMessage carries one piece of a file. Data is base64 on the wire.
type FileChunkMessage struct {
	ID   string `json:"id"`
	Seq  int    `json:"seq"`
	Data []byte `json:"data"`
}

// FileEndMessage closes a file transfer.
type FileEndMessage struct {
	ID string `json:"id"`
}

// FileAbortMessage tells receivers to discard a partial transfer.
type FileAbortMessage struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// ErrorMessage is sent by the relay when a frame is rejected.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidMsg = "invalid_message"
	ErrCodeNoHello    = "hello_required"
)

// NewEnvelope creates an envelope with the given type and data.
func NewEnvelope(msgType MessageType, data interface{}) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return &Envelope{
		Type: msgType,
		Data: raw,
	}, nil
}

// Encode builds an envelope and marshals it in one step.
func Encode(msgType MessageType, data interface{}) ([]byte, error) {
	env, err := NewEnvelope(msgType, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// ParseEnvelope parses a JSON message into an envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}
	return &env, nil
}

// Decode unmarshals the envelope payload into v.
func (e *Envelope) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	return nil
}
