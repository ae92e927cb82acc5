// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/opentalk-tui/internal/dispatch"
	"github.com/jeranaias/opentalk-tui/internal/event"
	"github.com/jeranaias/opentalk-tui/internal/tasks"
	"github.com/jeranaias/opentalk-tui/internal/transfer"
	"github.com/jeranaias/opentalk-tui/internal/ui/styles"
)

// =============================================================================
// FAKE SESSION
// =============================================================================

type fakeSession struct {
	name   string
	ctx    context.Context
	queue  *dispatch.Queue
	stager *transfer.Stager
	runner *tasks.Runner

	mu      sync.Mutex
	texts   []string
	files   []string
	sendErr error
	// sendBody runs as the transfer task when set
	sendBody tasks.Func
}

func (f *fakeSession) Name() string             { return f.name }
func (f *fakeSession) Context() context.Context { return f.ctx }
func (f *fakeSession) Queue() *dispatch.Queue   { return f.queue }
func (f *fakeSession) Stager() *transfer.Stager { return f.stager }
func (f *fakeSession) Transfers() *tasks.Queue  { return f.runner.Queue() }

func (f *fakeSession) SendText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeSession) SendFile(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.files = append(f.files, path)
	if f.sendBody != nil {
		return f.runner.Submit(tasks.NewTask("send "+filepath.Base(path), path, f.sendBody))
	}
	return nil
}

func newTestModel(t *testing.T) (Model, *fakeSession) {
	t.Helper()
	log, _ := test.NewNullLogger()
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sess := &fakeSession{
		name:   "alice",
		ctx:    ctx,
		queue:  dispatch.NewQueue(),
		stager: transfer.NewStager(filepath.Join(dir, "staging"), transfer.DefaultStagingPrefix, log),
		runner: tasks.NewRunner(ctx, tasks.NewQueue(0, nil), 2, 0, log),
	}
	t.Cleanup(sess.runner.Stop)
	require.NoError(t, os.MkdirAll(sess.stager.Dir(), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "downloads"), 0755))

	m := New(sess, styles.NewTheme(), Options{
		DownloadDir: filepath.Join(dir, "downloads"),
		PickerDir:   dir,
		Logger:      log,
	})
	m.SetSize(100, 30)
	return m, sess
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok, "Update returned %T", next)
	return out, cmd
}

func deliver(t *testing.T, m Model, e event.Event) (Model, tea.Cmd) {
	t.Helper()
	return update(t, m, dispatch.EventMsg{Event: e})
}

func keyMsg(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func sysEvent(t *testing.T, text string) event.Event {
	t.Helper()
	e, err := event.NewSystem(text)
	require.NoError(t, err)
	return e
}

func chatEvent(t *testing.T, sender, text string, isOwn bool) event.Event {
	t.Helper()
	e, err := event.NewChat(sender, text, isOwn)
	require.NoError(t, err)
	return e
}

func offerEvent(t *testing.T, name string) event.Event {
	t.Helper()
	e, err := event.NewFileOffer(name)
	require.NoError(t, err)
	return e
}

// =============================================================================
// RENDER CONSUMER
// =============================================================================

func TestModel_EventsAreBucketed(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = deliver(t, m, sysEvent(t, "bob joined"))
	m, _ = deliver(t, m, chatEvent(t, "alice", "hi bob", true))
	m, _ = deliver(t, m, chatEvent(t, "bob", "hey alice", false))

	require.Equal(t, 3, m.Rows())
	assert.Equal(t, event.BucketSystem, m.rows[0].bucket)
	assert.Equal(t, event.BucketOwn, m.rows[1].bucket)
	assert.Equal(t, event.BucketPeer, m.rows[2].bucket)

	view := m.View()
	assert.Contains(t, view, "Connected as:")
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "bob joined")
	assert.Contains(t, view, "hi bob")
	assert.Contains(t, view, "hey alice")
}

func TestModel_OwnRowsHaveNoLabel(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = deliver(t, m, chatEvent(t, "alice", "just me", true))

	own := m.renderRow(m.rows[0], false)
	assert.NotContains(t, own, "alice")

	m, _ = deliver(t, m, chatEvent(t, "bob", "from bob", false))
	peer := m.renderRow(m.rows[1], false)
	assert.Contains(t, peer, "bob")
}

func TestModel_ReArmsAfterEachEvent(t *testing.T) {
	m, sess := newTestModel(t)

	next := sysEvent(t, "second")
	require.NoError(t, sess.queue.Enqueue(next))

	m, cmd := deliver(t, m, sysEvent(t, "first"))
	require.NotNil(t, cmd)

	msg := cmd()
	got, ok := msg.(dispatch.EventMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "second", got.Event.Text)

	m, cmd = update(t, m, got)
	require.NotNil(t, cmd)
	assert.Equal(t, 2, m.Rows())
}

func TestModel_AutoScrollsToBottom(t *testing.T) {
	m, _ := newTestModel(t)
	m.SetSize(80, 12)

	for i := 0; i < 40; i++ {
		m, _ = deliver(t, m, chatEvent(t, "bob", fmt.Sprintf("line %d", i), false))
		assert.True(t, m.viewport.AtBottom(), "not at bottom after event %d", i)
	}

	m, _ = update(t, m, keyMsg(tea.KeyPgUp))
	assert.False(t, m.viewport.AtBottom())

	m, _ = deliver(t, m, sysEvent(t, "newest"))
	assert.True(t, m.viewport.AtBottom())
}

func TestModel_StoppedMsg(t *testing.T) {
	m, sess := newTestModel(t)

	m, cmd := update(t, m, dispatch.StoppedMsg{Err: dispatch.ErrClosed})
	assert.Nil(t, cmd)
	assert.True(t, m.Stopped())
	assert.Contains(t, m.View(), "disconnected")

	m = typeText(t, m, "too late")
	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	assert.Empty(t, sess.texts)
}

// =============================================================================
// INPUT
// =============================================================================

func TestModel_EnterSendsAndClears(t *testing.T) {
	m, sess := newTestModel(t)

	m = typeText(t, m, "hello there")
	m, _ = update(t, m, keyMsg(tea.KeyEnter))

	assert.Equal(t, []string{"hello there"}, sess.texts)
	assert.Empty(t, m.input.Value())
}

func TestModel_EmptyInputIsNotSent(t *testing.T) {
	m, sess := newTestModel(t)

	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	m = typeText(t, m, "   ")
	m, _ = update(t, m, keyMsg(tea.KeyEnter))

	assert.Empty(t, sess.texts)
	assert.Equal(t, 0, m.Rows())
}

func TestModel_SendFailureIsShown(t *testing.T) {
	m, sess := newTestModel(t)
	sess.sendErr = errors.New("session closed")

	m = typeText(t, m, "hello")
	m, _ = update(t, m, keyMsg(tea.KeyEnter))

	require.Equal(t, 1, m.Rows())
	assert.Equal(t, event.BucketSystem, m.rows[0].bucket)
	assert.Equal(t, "Message not sent: session closed", m.rows[0].text)
}

func TestModel_CtrlCQuits(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := update(t, m, keyMsg(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

// =============================================================================
// FILE OFFERS AND RETRIEVAL
// =============================================================================

func offer(t *testing.T, m Model, name string) Model {
	t.Helper()
	m, _ = deliver(t, m, offerEvent(t, name))
	return m
}

func TestModel_OfferRendersAsControl(t *testing.T) {
	m, _ := newTestModel(t)
	m = offer(t, m, "report.pdf")

	require.Equal(t, 1, m.Rows())
	assert.Equal(t, "report.pdf", m.rows[0].offer)
	assert.Empty(t, m.rows[0].text)
	assert.Contains(t, m.View(), "report.pdf (download)")
}

func TestModel_TabCyclesOffers(t *testing.T) {
	m, _ := newTestModel(t)

	// no offers: Tab does nothing
	m, _ = update(t, m, keyMsg(tea.KeyTab))
	assert.Empty(t, m.FocusedOffer())

	m = offer(t, m, "a.txt")
	m, _ = deliver(t, m, chatEvent(t, "bob", "between", false))
	m = offer(t, m, "b.txt")

	m, _ = update(t, m, keyMsg(tea.KeyTab))
	assert.Equal(t, "a.txt", m.FocusedOffer())
	m, _ = update(t, m, keyMsg(tea.KeyTab))
	assert.Equal(t, "b.txt", m.FocusedOffer())
	m, _ = update(t, m, keyMsg(tea.KeyTab))
	assert.Empty(t, m.FocusedOffer(), "focus returns to the input")

	m, _ = update(t, m, keyMsg(tea.KeyShiftTab))
	assert.Equal(t, "b.txt", m.FocusedOffer())

	m, _ = update(t, m, keyMsg(tea.KeyEsc))
	assert.Empty(t, m.FocusedOffer())
	assert.True(t, m.input.Focused())
}

func TestModel_RetrieveSuccess(t *testing.T) {
	m, sess := newTestModel(t)

	data := []byte(strings.Repeat("opentalk ", 1000))
	require.NoError(t, os.WriteFile(sess.stager.Path("report.pdf"), data, 0644))

	m = offer(t, m, "report.pdf")
	m, _ = update(t, m, keyMsg(tea.KeyTab))
	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	require.Equal(t, ModePrompt, m.Mode())

	want := filepath.Join(m.downloadDir, "report.pdf")
	assert.Equal(t, want, m.dest.Value())
	assert.Contains(t, m.View(), "Download report.pdf")

	m, cmd := update(t, m, keyMsg(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.Equal(t, ModeNormal, m.Mode())

	done, ok := cmd().(RetrieveDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.Err)
	assert.Equal(t, int64(len(data)), done.Bytes)

	m, _ = update(t, m, done)
	require.Equal(t, ModeModal, m.Mode())
	assert.Equal(t, "File saved to: "+done.Dst, m.modalText)
	assert.True(t, filepath.IsAbs(done.Dst))

	got, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = os.Stat(sess.stager.Path("report.pdf"))
	assert.NoError(t, err, "staged file is kept")

	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	assert.Equal(t, ModeNormal, m.Mode())
}

func TestModel_RetrieveFailureIsSurfaced(t *testing.T) {
	m, _ := newTestModel(t)

	m = offer(t, m, "missing.bin")
	m, _ = update(t, m, keyMsg(tea.KeyTab))
	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	m, cmd := update(t, m, keyMsg(tea.KeyEnter))
	require.NotNil(t, cmd)

	done := cmd().(RetrieveDoneMsg)
	require.Error(t, done.Err)
	var rerr *transfer.RetrieveError
	require.ErrorAs(t, done.Err, &rerr)
	assert.Equal(t, "open", rerr.Op)

	_, err := os.Stat(filepath.Join(m.downloadDir, "missing.bin"))
	assert.True(t, os.IsNotExist(err), "no empty destination is left behind")

	m, _ = update(t, m, done)
	assert.Equal(t, ModeModal, m.Mode())
	assert.True(t, m.modalFailed)
	require.Equal(t, 2, m.Rows())
	assert.Contains(t, m.rows[1].text, "Download failed")

	m, _ = update(t, m, keyMsg(tea.KeyEsc))
	assert.Equal(t, ModeNormal, m.Mode())
}

func TestModel_PromptEscCancels(t *testing.T) {
	m, _ := newTestModel(t)

	m = offer(t, m, "notes.txt")
	m, _ = update(t, m, keyMsg(tea.KeyTab))
	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	require.Equal(t, ModePrompt, m.Mode())

	m, cmd := update(t, m, keyMsg(tea.KeyEsc))
	assert.Nil(t, cmd)
	assert.Equal(t, ModeNormal, m.Mode())
}

func TestModel_EventsArriveDuringPrompt(t *testing.T) {
	m, _ := newTestModel(t)

	m = offer(t, m, "notes.txt")
	m, _ = update(t, m, keyMsg(tea.KeyTab))
	m, _ = update(t, m, keyMsg(tea.KeyEnter))

	m, cmd := deliver(t, m, chatEvent(t, "bob", "still here", false))
	assert.NotNil(t, cmd)
	assert.Equal(t, ModePrompt, m.Mode())
	assert.Equal(t, 2, m.Rows())
}

// =============================================================================
// FILE PICKER
// =============================================================================

func TestModel_PickerOpensAndCloses(t *testing.T) {
	m, _ := newTestModel(t)

	m, cmd := update(t, m, keyMsg(tea.KeyCtrlO))
	assert.NotNil(t, cmd)
	assert.Equal(t, ModePicker, m.Mode())
	assert.False(t, m.input.Focused())
	assert.Contains(t, m.View(), "Send a file")

	m, _ = update(t, m, keyMsg(tea.KeyEsc))
	assert.Equal(t, ModeNormal, m.Mode())
	assert.True(t, m.input.Focused())
}

func TestModel_FileChosenSends(t *testing.T) {
	m, sess := newTestModel(t)

	m, _ = update(t, m, keyMsg(tea.KeyCtrlO))
	m, _ = m.fileChosen("/home/u/docs/notes.txt")

	assert.Equal(t, ModeNormal, m.Mode())
	assert.Equal(t, []string{"/home/u/docs/notes.txt"}, sess.files)
	assert.Equal(t, 0, m.Rows(), "the session posts the start announcement")
}

func TestModel_FileChosenFailure(t *testing.T) {
	m, sess := newTestModel(t)
	sess.sendErr = errors.New("session closed")

	m, _ = m.fileChosen("/home/u/docs/notes.txt")

	require.Equal(t, 1, m.Rows())
	assert.Equal(t, "File transfer failed: notes.txt: session closed", m.rows[0].text)
}

func TestModel_PickerIgnoredWhenStopped(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, dispatch.StoppedMsg{})

	m, cmd := update(t, m, keyMsg(tea.KeyCtrlO))
	assert.Nil(t, cmd)
	assert.Equal(t, ModeNormal, m.Mode())
}

// =============================================================================
// OUTBOUND TRANSFERS
// =============================================================================

func TestModel_TransferProgressInHeader(t *testing.T) {
	m, sess := newTestModel(t)
	halfway := make(chan struct{})
	sess.sendBody = func(ctx context.Context, task *tasks.Task) error {
		if task.Path == "/home/u/notes.txt" {
			task.SetProgress(42)
			close(halfway)
		}
		<-ctx.Done()
		return ctx.Err()
	}

	m, cmd := m.fileChosen("/home/u/notes.txt")
	require.NotNil(t, cmd, "a pending transfer schedules a refresh")
	<-halfway
	require.Eventually(t, func() bool { return len(sess.Transfers().Running()) == 1 },
		time.Second, 5*time.Millisecond)

	assert.Contains(t, m.View(), "Sending notes.txt 42%")

	// one tick in flight at a time
	m, again := m.fileChosen("/home/u/other.txt")
	assert.Nil(t, again)

	m, cmd = update(t, m, transferTickMsg{})
	assert.NotNil(t, cmd, "ticks continue while transfers are pending")
}

func TestModel_CtrlXCancelsNewestTransfer(t *testing.T) {
	m, sess := newTestModel(t)
	started := make(chan string, 2)
	sess.sendBody = func(ctx context.Context, task *tasks.Task) error {
		started <- task.Path
		<-ctx.Done()
		return ctx.Err()
	}

	m, _ = m.fileChosen("/tmp/first.bin")
	require.Equal(t, "/tmp/first.bin", <-started)
	time.Sleep(2 * time.Millisecond)
	m, _ = m.fileChosen("/tmp/second.bin")
	require.Equal(t, "/tmp/second.bin", <-started)
	require.Eventually(t, func() bool { return len(sess.Transfers().Running()) == 2 },
		time.Second, 5*time.Millisecond)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlX})

	running := sess.Transfers().Running()
	require.Len(t, running, 1)
	assert.Equal(t, "/tmp/first.bin", running[0].Path)
	assert.Contains(t, m.View(), "Sending first.bin")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.Empty(t, sess.Transfers().Running())
	assert.NotContains(t, m.View(), "Sending")

	// nothing left to cancel
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.Nil(t, cmd)
	require.Eventually(t, func() bool { return sess.Transfers().Pending() == 0 },
		time.Second, 5*time.Millisecond)
	_, cmd = update(t, m, transferTickMsg{})
	assert.Nil(t, cmd, "ticks stop once nothing is pending")
}

// =============================================================================
// ROW CACHE AND SANITIZING
// =============================================================================

func TestModel_RowsRenderOnce(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = deliver(t, m, chatEvent(t, "bob", "first", false))
	require.True(t, m.rows[0].cached)
	m.rows[0].view = "cached-first-row"

	m, _ = deliver(t, m, chatEvent(t, "bob", "second", false))
	assert.Contains(t, m.viewport.View(), "cached-first-row", "earlier rows are reused")
	assert.Contains(t, m.viewport.View(), "second")

	m.SetSize(90, 30)
	assert.NotContains(t, m.viewport.View(), "cached-first-row", "a new width re-renders")
	assert.Contains(t, m.viewport.View(), "first")
}

func TestModel_OfferFocusRerendersRow(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = deliver(t, m, offerEvent(t, "report.pdf"))
	require.False(t, m.rows[0].viewFocused)
	m.rows[0].view = "stale offer"

	m, _ = update(t, m, keyMsg(tea.KeyTab))
	assert.True(t, m.rows[0].viewFocused)
	assert.Contains(t, m.rows[0].view, "report.pdf (download)")
}

func TestModel_PeerControlSequencesAreStripped(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = deliver(t, m, chatEvent(t, "bo\x1bb", "\x1b]0;owned\x07hi \x1b[2Jthere", false))

	assert.Equal(t, "]0;ownedhi [2Jthere", m.rows[0].text)
	assert.Equal(t, "bob", m.rows[0].sender)
	assert.NotContains(t, m.viewport.View(), "\x1b]0;")
	assert.NotContains(t, m.viewport.View(), "\x1b[2J")
}
