// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CONSTRUCTOR TESTS
// =============================================================================

func TestNewSystem(t *testing.T) {
	e, err := NewSystem("hello")
	require.NoError(t, err)

	assert.Equal(t, SystemSender, e.Sender)
	assert.Equal(t, "hello", e.Text)
	assert.False(t, e.IsOwn)
	assert.False(t, e.IsFileOffer)
	assert.True(t, e.IsSystem())
}

func TestNewSystem_EmptyRejected(t *testing.T) {
	_, err := NewSystem("")
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestNewChat(t *testing.T) {
	e, err := NewChat("alice", "hi there", false)
	require.NoError(t, err)
	assert.Equal(t, "alice", e.Sender)
	assert.Equal(t, BucketPeer, e.Bucket())

	own, err := NewChat("bob", "mine", true)
	require.NoError(t, err)
	assert.Equal(t, BucketOwn, own.Bucket())
}

func TestNewChat_SystemSenderDropsOwnership(t *testing.T) {
	e, err := NewChat(SystemSender, "notice", true)
	require.NoError(t, err)
	assert.False(t, e.IsOwn)
	assert.Equal(t, BucketSystem, e.Bucket())
}

func TestNewChat_EmptySender(t *testing.T) {
	_, err := NewChat("  ", "text", false)
	assert.ErrorIs(t, err, ErrNoSender)
}

func TestNewFileOffer(t *testing.T) {
	e, err := NewFileOffer("report.pdf")
	require.NoError(t, err)

	assert.True(t, e.IsFileOffer)
	assert.Equal(t, "report.pdf", e.FileName)
	assert.Empty(t, e.Text)
	assert.Equal(t, BucketSystem, e.Bucket())
}

func TestNewFileOffer_EmptyName(t *testing.T) {
	_, err := NewFileOffer("")
	assert.ErrorIs(t, err, ErrNoPayload)
}

// =============================================================================
// PAYLOAD EXCLUSIVITY
// =============================================================================

func TestValidate_PayloadExclusivity(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want error
	}{
		{
			name: "both text and file",
			ev:   Event{Sender: "alice", Text: "x", FileName: "a.txt", IsFileOffer: true},
			want: ErrBothPayloads,
		},
		{
			name: "neither on peer event",
			ev:   Event{Sender: "alice"},
			want: ErrNoPayload,
		},
		{
			name: "neither on system event",
			ev:   Event{Sender: SystemSender},
			want: ErrNoPayload,
		},
		{
			name: "file offer flag without name",
			ev:   Event{Sender: SystemSender, Text: "x", IsFileOffer: true},
			want: ErrFileOfferPayload,
		},
		{
			name: "file name without offer flag",
			ev:   Event{Sender: SystemSender, FileName: "a.txt"},
			want: ErrFileOfferPayload,
		},
		{
			name: "valid text",
			ev:   Event{Sender: "alice", Text: "x"},
		},
		{
			name: "valid file offer",
			ev:   Event{Sender: SystemSender, FileName: "a.txt", IsFileOffer: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// =============================================================================
// CLASSIFIER
// =============================================================================

func TestClassify(t *testing.T) {
	assert.Equal(t, BucketSystem, Classify(SystemSender, false))
	assert.Equal(t, BucketSystem, Classify(SystemSender, true))
	assert.Equal(t, BucketOwn, Classify("me", true))
	assert.Equal(t, BucketPeer, Classify("you", false))
}

func TestClassify_Deterministic(t *testing.T) {
	inputs := []struct {
		sender string
		isOwn  bool
	}{
		{SystemSender, true}, {SystemSender, false},
		{"alice", true}, {"alice", false}, {"", false},
	}

	for _, in := range inputs {
		first := Classify(in.sender, in.isOwn)
		for i := 0; i < 100; i++ {
			require.Equal(t, first, Classify(in.sender, in.isOwn),
				"Classify(%q, %v) changed between calls", in.sender, in.isOwn)
		}
	}
}

func TestBucketString(t *testing.T) {
	assert.Equal(t, "system", BucketSystem.String())
	assert.Equal(t, "own", BucketOwn.String())
	assert.Equal(t, "peer", BucketPeer.String())
	assert.Equal(t, "unknown", Bucket(42).String())
}
