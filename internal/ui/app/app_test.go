// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/opentalk-tui/internal/dispatch"
	"github.com/jeranaias/opentalk-tui/internal/event"
	"github.com/jeranaias/opentalk-tui/internal/tasks"
	"github.com/jeranaias/opentalk-tui/internal/transfer"
	"github.com/jeranaias/opentalk-tui/internal/ui/chat"
	"github.com/jeranaias/opentalk-tui/internal/ui/login"
	"github.com/jeranaias/opentalk-tui/internal/ui/styles"
)

type stubSession struct {
	queue  *dispatch.Queue
	closed bool
}

func (s *stubSession) Name() string             { return "alice" }
func (s *stubSession) Context() context.Context { return context.Background() }
func (s *stubSession) Queue() *dispatch.Queue   { return s.queue }
func (s *stubSession) Stager() *transfer.Stager { return nil }
func (s *stubSession) SendText(string) error    { return nil }
func (s *stubSession) SendFile(string) error    { return nil }
func (s *stubSession) Transfers() *tasks.Queue  { return tasks.NewQueue(0, nil) }
func (s *stubSession) Close() error {
	s.closed = true
	return nil
}

func newApp(t *testing.T) Model {
	t.Helper()
	log, _ := test.NewNullLogger()
	return New(styles.NewTheme(),
		login.Options{Name: "alice", Address: "127.0.0.1", Port: "8080", Logger: log},
		chat.Options{Logger: log},
	)
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestApp_StartsOnLogin(t *testing.T) {
	m := newApp(t)

	assert.Equal(t, ScreenLogin, m.Screen())
	assert.Nil(t, m.Session())
	assert.Contains(t, m.View(), "Name")
}

func TestApp_LoggedInSwapsToChat(t *testing.T) {
	m := newApp(t)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	sess := &stubSession{queue: dispatch.NewQueue()}
	m, cmd := step(t, m, login.LoggedInMsg{Session: sess})
	require.NotNil(t, cmd, "chat Init arms the queue")

	assert.Equal(t, ScreenChat, m.Screen())
	assert.Same(t, sess, m.Session())
	assert.Contains(t, m.View(), "Connected as:")

	// events now reach the chat screen
	e, err := event.NewSystem("bob joined")
	require.NoError(t, err)
	m, cmd = step(t, m, dispatch.EventMsg{Event: e})
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "bob joined")
}

func TestApp_SecondLoginIgnored(t *testing.T) {
	m := newApp(t)

	first := &stubSession{queue: dispatch.NewQueue()}
	m, _ = step(t, m, login.LoggedInMsg{Session: first})
	m, cmd := step(t, m, login.LoggedInMsg{Session: &stubSession{queue: dispatch.NewQueue()}})

	assert.Nil(t, cmd)
	assert.Same(t, first, m.Session())
}

func TestApp_ResizeReachesLogin(t *testing.T) {
	m := newApp(t)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 60, Height: 20})

	assert.Equal(t, 60, m.width)
	assert.Equal(t, 20, m.height)
	assert.Equal(t, ScreenLogin, m.Screen())
}
