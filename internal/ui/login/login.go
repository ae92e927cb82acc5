// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package login

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/opentalk-tui/internal/session"
	"github.com/jeranaias/opentalk-tui/internal/ui/chat"
	"github.com/jeranaias/opentalk-tui/internal/ui/styles"
)

// ConnectFailedText is shown when the bootstrap cannot reach the relay.
const ConnectFailedText = "Connection failed! Check the address and port."

// Session is a connected session the app can render and later close.
type Session interface {
	chat.Session
	Close() error
}

// BootstrapFunc turns credentials into a session. It runs off the render
// loop.
type BootstrapFunc func(ctx context.Context, creds session.Credentials) (Session, error)

// =============================================================================
// MESSAGES
// =============================================================================

// ConnectResultMsg carries the bootstrap outcome back to the form.
type ConnectResultMsg struct {
	Session Session
	Err     error
}

// LoggedInMsg is emitted once a session is live.
type LoggedInMsg struct {
	Session Session
}

// =============================================================================
// FORM
// =============================================================================

const (
	fieldName = iota
	fieldAddress
	fieldPort
	fieldCount
)

var fieldLabels = [fieldCount]string{"Name", "Address", "Port"}

type keyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Cancel key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next:   key.NewBinding(key.WithKeys("tab", "down")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab", "up")),
		Submit: key.NewBinding(key.WithKeys("enter")),
		Cancel: key.NewBinding(key.WithKeys("esc")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

// Options pre-fills the form and supplies its collaborators.
type Options struct {
	Name      string
	Address   string
	Port      string
	Context   context.Context // parent of every session started from the form
	Bootstrap BootstrapFunc
	Logger    logrus.FieldLogger
}

// Model is the login form.
type Model struct {
	theme     *styles.Theme
	keys      keyMap
	inputs    [fieldCount]textinput.Model
	focus     int
	ctx       context.Context
	bootstrap BootstrapFunc
	log       logrus.FieldLogger

	connecting bool
	failure    string

	width  int
	height int
}

// New creates the login form.
func New(theme *styles.Theme, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	m := Model{
		theme:     theme,
		keys:      defaultKeyMap(),
		ctx:       opts.Context,
		bootstrap: opts.Bootstrap,
		log:       opts.Logger,
		width:     80,
		height:    24,
	}

	values := [fieldCount]string{opts.Name, opts.Address, opts.Port}
	placeholders := [fieldCount]string{"your display name", "127.0.0.1", "8080"}
	limits := [fieldCount]int{64, 253, 5}
	for i := range m.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = placeholders[i]
		in.CharLimit = limits[i]
		in.Width = 40
		in.SetValue(values[i])
		m.inputs[i] = in
	}
	m.inputs[fieldName].Focus()
	return m
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Credentials returns the current form contents.
func (m Model) Credentials() session.Credentials {
	return session.Credentials{
		Name:    m.inputs[fieldName].Value(),
		Address: m.inputs[fieldAddress].Value(),
		Port:    m.inputs[fieldPort].Value(),
	}
}

// Failure returns the text of the visible error modal, or "".
func (m Model) Failure() string { return m.failure }

// Connecting reports whether a bootstrap is in flight.
func (m Model) Connecting() bool { return m.connecting }

// Focused returns the index of the focused field.
func (m Model) Focused() int { return m.focus }

// SetSize updates the layout for a new terminal size.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Update handles messages and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case ConnectResultMsg:
		return m.handleResult(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	// the modal swallows everything until it is dismissed
	if m.failure != "" {
		if key.Matches(msg, m.keys.Submit, m.keys.Cancel) {
			m.failure = ""
		}
		return m, nil
	}
	if m.connecting {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Next):
		cmd := m.setFocus((m.focus + 1) % fieldCount)
		return m, cmd
	case key.Matches(msg, m.keys.Prev):
		cmd := m.setFocus((m.focus + fieldCount - 1) % fieldCount)
		return m, cmd
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) setFocus(i int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m.inputs[m.focus].Focus()
}

// submit starts a bootstrap. Incomplete input is a silent no-op.
func (m Model) submit() (tea.Model, tea.Cmd) {
	creds := m.Credentials()
	if !creds.Complete() || m.bootstrap == nil {
		return m, nil
	}
	m.connecting = true
	return m, connect(m.ctx, m.bootstrap, creds)
}

func connect(ctx context.Context, bootstrap BootstrapFunc, creds session.Credentials) tea.Cmd {
	return func() tea.Msg {
		s, err := bootstrap(ctx, creds)
		return ConnectResultMsg{Session: s, Err: err}
	}
}

func (m Model) handleResult(msg ConnectResultMsg) (tea.Model, tea.Cmd) {
	m.connecting = false
	switch {
	case errors.Is(msg.Err, session.ErrIncomplete):
		return m, nil
	case msg.Err != nil:
		m.log.WithError(msg.Err).Warn("connection failed")
		m.failure = ConnectFailedText
		return m, nil
	case msg.Session == nil:
		return m, nil
	}
	s := msg.Session
	return m, func() tea.Msg { return LoggedInMsg{Session: s} }
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the form, or the error modal over it.
func (m Model) View() string {
	if m.failure != "" {
		body := lipgloss.JoinVertical(lipgloss.Center,
			m.theme.ErrorText.Render(m.failure),
			"",
			m.theme.ModalButton.Render("OK"),
		)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.theme.ModalError.Render(body))
	}

	lines := []string{m.theme.ModalTitle.Render("opentalk"), ""}
	for i := range m.inputs {
		label := m.theme.Label
		if i == m.focus {
			label = m.theme.LabelFocused
		}
		lines = append(lines, label.Render(fieldLabels[i])+m.inputs[i].View())
	}
	lines = append(lines, "")
	if m.connecting {
		lines = append(lines, m.theme.Hint.Render("Connecting..."))
	} else {
		lines = append(lines, m.theme.Hint.Render("Tab to move, Enter to connect, Ctrl+C to quit"))
	}

	form := m.theme.Modal.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, form)
}
