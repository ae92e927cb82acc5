// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/opentalk-tui/internal/dispatch"
	"github.com/jeranaias/opentalk-tui/internal/event"
	"github.com/jeranaias/opentalk-tui/internal/tasks"
	"github.com/jeranaias/opentalk-tui/internal/transfer"
	"github.com/jeranaias/opentalk-tui/internal/ui/styles"
	"github.com/jeranaias/opentalk-tui/internal/util"
)

// Session is what the chat screen needs from a connected session.
// *session.Session satisfies it.
type Session interface {
	Name() string
	Context() context.Context
	Queue() *dispatch.Queue
	Stager() *transfer.Stager
	SendText(text string) error
	SendFile(path string) error
	Transfers() *tasks.Queue
}

// transferTick is how often the header refreshes while transfers are pending.
const transferTick = 500 * time.Millisecond

// =============================================================================
// CHAT STATE
// =============================================================================

// Mode is the surface currently taking keyboard input.
type Mode int

const (
	ModeNormal Mode = iota // message input, or a focused file offer
	ModePrompt             // download destination prompt
	ModePicker             // outbound file picker
	ModeModal              // retrieval result
)

// row is one rendered line of history. It holds copies of the fields the
// view needs; the Event it came from is not retained.
type row struct {
	bucket event.Bucket
	sender string
	text   string
	offer  string // file name when the row is a file offer

	// last rendering, reused until the width or focus changes
	view        string
	viewHeight  int
	viewWidth   int
	viewFocused bool
	cached      bool
}

// Options configures the chat screen.
type Options struct {
	DownloadDir string // prefix for the suggested download destination
	PickerDir   string // first directory shown by the file picker
	Logger      logrus.FieldLogger
}

// Model is the chat screen.
type Model struct {
	sess  Session
	theme *styles.Theme
	keys  KeyMap
	help  help.Model
	log   logrus.FieldLogger

	// Components
	viewport viewport.Model
	input    textinput.Model
	dest     textinput.Model
	picker   filepicker.Model

	// History
	rows     []row
	offers   []int // indices into rows
	rowLines []int // first viewport line of each row, from the last render

	// Interaction
	mode        Mode
	focus       int    // index into offers, or -1 when the input has focus
	pending     string // offer name the prompt is for
	modalText   string
	modalFailed bool
	downloadDir string
	stopped     bool
	ticking     bool // a transfer tick is scheduled

	width  int
	height int
}

// New creates the chat screen for a connected session.
func New(sess Session, theme *styles.Theme, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.PickerDir == "" {
		opts.PickerDir = "."
	}

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.CharLimit = 4096
	input.Focus()

	dest := textinput.New()
	dest.Prompt = "Save as: "
	dest.CharLimit = 1024

	fp := filepicker.New()
	fp.CurrentDirectory = opts.PickerDir
	fp.AllowedTypes = []string{}
	fp.AutoHeight = false
	fp.Height = 10

	vp := viewport.New(80, 20)

	m := Model{
		sess:        sess,
		theme:       theme,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		log:         opts.Logger,
		viewport:    vp,
		input:       input,
		dest:        dest,
		picker:      fp,
		focus:       -1,
		downloadDir: opts.DownloadDir,
		width:       80,
		height:      24,
	}
	m.applySize()
	return m
}

// Init arms the first wait on the dispatch queue.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		dispatch.WaitForEvent(m.sess.Context(), m.sess.Queue()),
		textinput.Blink,
	)
}

// Update handles messages and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case dispatch.EventMsg:
		return m.handleEvent(msg)

	case dispatch.StoppedMsg:
		m.stopped = true
		m.input.Blur()
		m.log.WithError(msg.Err).Debug("dispatch queue stopped")
		return m, nil

	case RetrieveDoneMsg:
		return m.handleRetrieveDone(msg)

	case transferTickMsg:
		m.ticking = false
		cmd := m.watchTransfers()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.forward(msg)
}

// View renders the chat screen.
func (m Model) View() string {
	return m.render()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Mode returns the surface currently taking input.
func (m Model) Mode() Mode { return m.mode }

// Stopped reports whether the dispatch queue has shut down.
func (m Model) Stopped() bool { return m.stopped }

// Rows returns the number of history rows.
func (m Model) Rows() int { return len(m.rows) }

// FocusedOffer returns the file name of the focused offer, or "".
func (m Model) FocusedOffer() string {
	if m.focus < 0 || m.focus >= len(m.offers) {
		return ""
	}
	return m.rows[m.offers[m.focus]].offer
}

// SetSize updates the layout for a new terminal size.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.applySize()
}

func (m *Model) applySize() {
	const (
		headerHeight    = 2
		inputAreaHeight = 3
		helpHeight      = 1
	)
	vh := m.height - headerHeight - inputAreaHeight - helpHeight
	if vh < 1 {
		vh = 1
	}
	vw := m.width
	if vw < 1 {
		vw = 1
	}
	m.viewport.Width = vw
	m.viewport.Height = vh

	iw := m.width - 6
	if iw < 10 {
		iw = 10
	}
	m.input.Width = iw
	m.dest.Width = iw - 10

	ph := m.height - 8
	if ph < 3 {
		ph = 3
	}
	m.picker.Height = ph
	m.help.Width = m.width

	m.refresh()
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

// handleEvent renders one dequeued event and re-arms the wait. Every mode
// keeps consuming the queue. Peer-supplied text is stripped of control
// characters before it reaches the terminal.
func (m Model) handleEvent(msg dispatch.EventMsg) (tea.Model, tea.Cmd) {
	e := msg.Event.Normalize()
	r := row{
		bucket: e.Bucket(),
		sender: util.SingleLine(util.StripControl(e.Sender)),
		text:   util.StripControl(e.Text),
	}
	if e.IsFileOffer {
		r.text = ""
		r.offer = util.SingleLine(util.StripControl(e.FileName))
	}
	m.addRow(r)
	m.viewport.GotoBottom()
	return m, dispatch.WaitForEvent(m.sess.Context(), m.sess.Queue())
}

func (m Model) handleRetrieveDone(msg RetrieveDoneMsg) (tea.Model, tea.Cmd) {
	m.mode = ModeModal
	if msg.Err != nil {
		m.log.WithError(msg.Err).WithField("file", msg.Name).Warn("download failed")
		m.modalFailed = true
		m.modalText = fmt.Sprintf("Download failed: %v", msg.Err)
		m.addRow(row{bucket: event.BucketSystem, sender: event.SystemSender, text: m.modalText})
		m.viewport.GotoBottom()
		return m, nil
	}
	m.log.WithFields(logrus.Fields{
		"file":  msg.Name,
		"dst":   msg.Dst,
		"bytes": msg.Bytes,
	}).Info("download complete")
	m.modalFailed = false
	m.modalText = "File saved to: " + msg.Dst
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	switch m.mode {
	case ModeModal:
		if key.Matches(msg, m.keys.Submit, m.keys.Cancel) {
			m.mode = ModeNormal
			m.modalText = ""
		}
		return m, nil

	case ModePrompt:
		return m.handlePromptKey(msg)

	case ModePicker:
		return m.handlePickerKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.NextOffer):
		m.moveFocus(1)
		return m, nil

	case key.Matches(msg, m.keys.PrevOffer):
		m.moveFocus(-1)
		return m, nil

	case key.Matches(msg, m.keys.SendFile):
		return m.openPicker()

	case key.Matches(msg, m.keys.CancelTransfer):
		m.cancelTransfer()
		return m, nil

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Cancel):
		if m.focus >= 0 {
			m.setFocus(-1)
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if name := m.FocusedOffer(); name != "" {
			return m.openPrompt(name)
		}
		return m.submitInput()
	}

	if m.focus >= 0 {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submitInput sends the input text. Empty input is never sent.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if m.stopped {
		return m, nil
	}
	m.input.Reset()
	if err := m.sess.SendText(text); err != nil {
		m.log.WithError(err).Warn("send failed")
		m.addRow(row{bucket: event.BucketSystem, sender: event.SystemSender, text: "Message not sent: " + err.Error()})
		m.viewport.GotoBottom()
	}
	return m, nil
}

// =============================================================================
// FILE OFFERS
// =============================================================================

// moveFocus cycles through the offers and back to the input.
func (m *Model) moveFocus(delta int) {
	n := len(m.offers)
	if n == 0 {
		return
	}
	// positions 0..n-1 are offers, n is the input
	pos := m.focus
	if pos < 0 {
		pos = n
	}
	pos = (pos + delta + n + 1) % (n + 1)
	if pos == n {
		pos = -1
	}
	m.setFocus(pos)
}

func (m *Model) setFocus(focus int) {
	m.focus = focus
	if focus < 0 {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
	m.refresh()
	if focus >= 0 {
		m.scrollToRow(m.offers[focus])
	}
}

func (m *Model) scrollToRow(i int) {
	if i < 0 || i >= len(m.rowLines) {
		return
	}
	line := m.rowLines[i]
	if line < m.viewport.YOffset || line >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(line)
	}
}

// openPrompt asks where to save the offered file, suggesting its original
// name in the download directory.
func (m Model) openPrompt(name string) (tea.Model, tea.Cmd) {
	m.mode = ModePrompt
	m.pending = name
	suggested := transfer.SuggestedName(name)
	if m.downloadDir != "" {
		suggested = filepath.Join(m.downloadDir, suggested)
	}
	m.dest.SetValue(suggested)
	m.dest.CursorEnd()
	cmd := m.dest.Focus()
	return m, cmd
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.mode = ModeNormal
		m.pending = ""
		m.dest.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		dst := strings.TrimSpace(m.dest.Value())
		if dst == "" {
			return m, nil
		}
		name := m.pending
		m.mode = ModeNormal
		m.pending = ""
		m.dest.Blur()
		return m, retrieve(m.sess.Stager(), name, dst)
	}

	var cmd tea.Cmd
	m.dest, cmd = m.dest.Update(msg)
	return m, cmd
}

// retrieve copies a staged file off the render loop.
func retrieve(stager *transfer.Stager, name, dst string) tea.Cmd {
	src := stager.Path(name)
	return func() tea.Msg {
		abs, n, err := transfer.Retrieve(src, dst)
		return RetrieveDoneMsg{Name: name, Dst: abs, Bytes: n, Err: err}
	}
}

// =============================================================================
// FILE PICKER
// =============================================================================

func (m Model) openPicker() (tea.Model, tea.Cmd) {
	if m.stopped {
		return m, nil
	}
	m.mode = ModePicker
	m.input.Blur()
	return m, m.picker.Init()
}

func (m Model) closePicker() Model {
	m.mode = ModeNormal
	if m.focus < 0 {
		m.input.Focus()
	}
	return m
}

// handlePickerKey closes the picker on Esc before the picker sees it, since
// the picker binds Esc to "parent directory".
func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Cancel) {
		return m.closePicker(), nil
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if ok, path := m.picker.DidSelectFile(msg); ok {
		return m.fileChosen(path)
	}
	return m, cmd
}

// fileChosen starts an outbound transfer. The session posts the start
// announcement itself.
func (m Model) fileChosen(path string) (Model, tea.Cmd) {
	m = m.closePicker()
	if err := m.sess.SendFile(path); err != nil {
		m.log.WithError(err).WithField("file", path).Warn("send file failed")
		m.addRow(row{bucket: event.BucketSystem, sender: event.SystemSender, text: transfer.FailedAnnouncement(path, err)})
		m.viewport.GotoBottom()
		return m, nil
	}
	cmd := m.watchTransfers()
	return m, cmd
}

// =============================================================================
// OUTBOUND TRANSFERS
// =============================================================================

type transferTickMsg struct{}

// watchTransfers schedules a header refresh while any transfer is pending.
// At most one tick is in flight.
func (m *Model) watchTransfers() tea.Cmd {
	q := m.sess.Transfers()
	if m.ticking || q == nil || q.Pending() == 0 {
		return nil
	}
	m.ticking = true
	return tea.Tick(transferTick, func(time.Time) tea.Msg { return transferTickMsg{} })
}

// runningTransfers returns the transfers currently sending, oldest first.
func (m Model) runningTransfers() []*tasks.Task {
	q := m.sess.Transfers()
	if q == nil {
		return nil
	}
	return q.Running()
}

// cancelTransfer cancels the newest running transfer. The session posts the
// cancellation announcement.
func (m Model) cancelTransfer() {
	running := m.runningTransfers()
	if len(running) == 0 {
		return
	}
	t := running[len(running)-1]
	if m.sess.Transfers().Cancel(t.ID) {
		m.log.WithFields(logrus.Fields{"task_id": t.ID, "file": t.Path}).Info("transfer canceled")
	}
}

// forward passes messages the model does not handle itself (cursor blinks,
// directory listings) to the components that may own them.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	switch m.mode {
	case ModePrompt:
		m.dest, cmd = m.dest.Update(msg)
		cmds = append(cmds, cmd)
	case ModePicker:
		m.picker, cmd = m.picker.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// =============================================================================
// HISTORY
// =============================================================================

func (m *Model) addRow(r row) {
	m.rows = append(m.rows, r)
	if r.offer != "" {
		m.offers = append(m.offers, len(m.rows)-1)
	}
	m.refresh()
}

func (m *Model) refresh() {
	content, lines := m.renderRows()
	m.rowLines = lines
	m.viewport.SetContent(content)
}
