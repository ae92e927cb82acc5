// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the root Bubble Tea model. It shows the login form until a
// session is live and then swaps in the chat screen for good.
package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/opentalk-tui/internal/ui/chat"
	"github.com/jeranaias/opentalk-tui/internal/ui/login"
	"github.com/jeranaias/opentalk-tui/internal/ui/styles"
)

// Screen identifies the active surface.
type Screen int

const (
	ScreenLogin Screen = iota
	ScreenChat
)

// Model is the root model.
type Model struct {
	theme    *styles.Theme
	screen   Screen
	login    login.Model
	chat     chat.Model
	chatOpts chat.Options
	sess     login.Session

	width  int
	height int
}

// New creates the root model showing the login form.
func New(theme *styles.Theme, loginOpts login.Options, chatOpts chat.Options) Model {
	return Model{
		theme:    theme,
		screen:   ScreenLogin,
		login:    login.New(theme, loginOpts),
		chatOpts: chatOpts,
	}
}

// Screen returns the active surface.
func (m Model) Screen() Screen { return m.screen }

// Session returns the live session, or nil before login. The caller closes
// it once the program exits.
func (m Model) Session() login.Session { return m.sess }

// Init starts the login form.
func (m Model) Init() tea.Cmd {
	return m.login.Init()
}

// Update routes messages to the active screen.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case login.LoggedInMsg:
		if m.screen == ScreenChat || msg.Session == nil {
			return m, nil
		}
		m.sess = msg.Session
		m.chat = chat.New(msg.Session, m.theme, m.chatOpts)
		if m.width > 0 && m.height > 0 {
			m.chat.SetSize(m.width, m.height)
		}
		m.screen = ScreenChat
		return m, m.chat.Init()
	}

	var cmd tea.Cmd
	var next tea.Model
	switch m.screen {
	case ScreenChat:
		next, cmd = m.chat.Update(msg)
		m.chat = next.(chat.Model)
	default:
		next, cmd = m.login.Update(msg)
		m.login = next.(login.Model)
	}
	return m, cmd
}

// View renders the active screen.
func (m Model) View() string {
	if m.screen == ScreenChat {
		return m.chat.View()
	}
	return m.login.View()
}
