// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/opentalk-tui/internal/dispatch"
	"github.com/jeranaias/opentalk-tui/internal/network"
	"github.com/jeranaias/opentalk-tui/internal/tasks"
	"github.com/jeranaias/opentalk-tui/internal/transfer"
)

var (
	// ErrIncomplete is returned by Bootstrap when a credential is blank.
	ErrIncomplete = errors.New("session: name, address and port are required")

	// ErrEmptyMessage is returned by SendText for blank text.
	ErrEmptyMessage = errors.New("session: empty message")

	// ErrSendBacklog is returned by SendText when too many lines are
	// waiting for the connection.
	ErrSendBacklog = errors.New("session: too many unsent messages")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session: closed")
)

const (
	defaultDialTimeout = 10 * time.Second
	outboxSize         = 128
	taskHistory        = 100
)

// =============================================================================
// CREDENTIALS
// =============================================================================

// Credentials are the three login fields, as typed.
type Credentials struct {
	Name    string
	Address string
	Port    string
}

// Complete reports whether every field is non-blank.
func (c Credentials) Complete() bool {
	t := c.trimmed()
	return t.Name != "" && t.Address != "" && t.Port != ""
}

func (c Credentials) trimmed() Credentials {
	return Credentials{
		Name:    strings.TrimSpace(c.Name),
		Address: strings.TrimSpace(c.Address),
		Port:    strings.TrimSpace(c.Port),
	}
}

// ConnectError reports a failed connection attempt.
type ConnectError struct {
	Address string
	Port    string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s:%s: %v", e.Address, e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// ConnectFunc builds the dialer for a display name. The stager receives the
// session's inbound files.
type ConnectFunc func(name string, stager *transfer.Stager) network.Dialer

// Deps are the collaborators and settings Bootstrap wires together.
type Deps struct {
	Connect ConnectFunc

	// StagingDir and StagingPrefix locate inbound files
	StagingDir    string
	StagingPrefix string

	// MaxConcurrent bounds outbound transfers (0 = tasks.DefaultMaxConcurrent)
	MaxConcurrent int

	// DialTimeout bounds the connection attempt (0 = 10s)
	DialTimeout time.Duration

	Logger logrus.FieldLogger
}

// Bootstrap validates creds, connects, and starts the session's workers.
// ctx bounds the session's lifetime as well as the dial.
//
// It returns ErrIncomplete if any field is blank, or a *ConnectError if the
// port is not a number or the dial fails.
func Bootstrap(ctx context.Context, creds Credentials, deps Deps) (*Session, error) {
	creds = creds.trimmed()
	if !creds.Complete() {
		return nil, ErrIncomplete
	}
	if deps.Connect == nil {
		return nil, errors.New("session: no connect function")
	}

	port, err := strconv.Atoi(creds.Port)
	if err != nil || port < 1 || port > 65535 {
		return nil, &ConnectError{Address: creds.Address, Port: creds.Port, Err: fmt.Errorf("invalid port %q", creds.Port)}
	}

	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	id := uuid.New().String()
	log = log.WithFields(logrus.Fields{"session": id, "name": creds.Name})

	prefix := deps.StagingPrefix
	if prefix == "" {
		prefix = transfer.DefaultStagingPrefix
	}
	stager := transfer.NewStager(deps.StagingDir, prefix, log)

	timeout := deps.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialCtx, cancelDial := context.WithTimeout(ctx, timeout)
	defer cancelDial()

	conn, err := deps.Connect(creds.Name, stager)(dialCtx, creds.Address, port)
	if err != nil {
		log.WithError(err).Warn("connection failed")
		return nil, &ConnectError{Address: creds.Address, Port: creds.Port, Err: err}
	}

	s := newSession(ctx, id, creds.Name, conn, stager, deps.MaxConcurrent, log)
	s.start()
	log.WithField("server", fmt.Sprintf("%s:%d", creds.Address, port)).Info("session started")
	return s, nil
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the live state behind the chat screen.
type Session struct {
	id     string
	name   string
	conn   network.Conn
	queue  *dispatch.Queue
	poster *dispatch.Poster
	stager *transfer.Stager
	runner *tasks.Runner
	log    logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	outbox chan string

	wg        sync.WaitGroup // receive loop and sender
	closeOnce sync.Once
}

func newSession(parent context.Context, id, name string, conn network.Conn, stager *transfer.Stager, maxConcurrent int, log logrus.FieldLogger) *Session {
	ctx, cancel := context.WithCancel(parent)
	queue := dispatch.NewQueue()
	s := &Session{
		id:     id,
		name:   name,
		conn:   conn,
		queue:  queue,
		poster: dispatch.NewPoster(queue),
		stager: stager,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		outbox: make(chan string, outboxSize),
	}
	s.runner = tasks.NewRunner(ctx, tasks.NewQueue(taskHistory, s.notify), maxConcurrent, 0, log)
	return s
}

func (s *Session) start() {
	s.wg.Add(2)
	go s.receive()
	go s.sender()
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Name returns the display name the session connected with.
func (s *Session) Name() string { return s.name }

// Context is canceled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// Queue returns the dispatch queue the chat screen drains.
func (s *Session) Queue() *dispatch.Queue { return s.queue }

// Poster returns the producer API for the session's queue.
func (s *Session) Poster() *dispatch.Poster { return s.poster }

// Stager returns where inbound files are staged.
func (s *Session) Stager() *transfer.Stager { return s.stager }

// Transfers returns the outbound transfer registry. The chat screen reads
// running transfers from it and cancels them through it.
func (s *Session) Transfers() *tasks.Queue { return s.runner.Queue() }

// =============================================================================
// WORKERS
// =============================================================================

func (s *Session) receive() {
	defer s.wg.Done()

	err := s.conn.ReceiveLoop(s.ctx, s.poster)
	switch {
	case s.ctx.Err() != nil || errors.Is(err, network.ErrClosed):
		s.log.Debug("receive loop stopped")
	case err != nil:
		s.log.WithError(err).Warn("connection lost")
		s.post(fmt.Sprintf("Disconnected: %v", err))
	default:
		s.log.Info("server closed the connection")
		s.post("Disconnected from server")
	}
}

// sender writes queued text lines in the order they were typed.
func (s *Session) sender() {
	defer s.wg.Done()
	for {
		select {
		case text := <-s.outbox:
			if err := s.conn.SendText(s.ctx, text); err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.log.WithError(err).Warn("send failed")
				s.post(fmt.Sprintf("Message not sent: %v", err))
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// notify turns finished transfers into system events.
func (s *Session) notify(n tasks.TaskNotification) {
	switch n.Status {
	case tasks.TaskStatusComplete:
		s.post(transfer.CompleteAnnouncement(n.Path))
	case tasks.TaskStatusFailed:
		s.post(transfer.FailedAnnouncement(n.Path, n.Err))
	case tasks.TaskStatusCanceled:
		s.post("File transfer canceled: " + filepath.Base(n.Path))
	}
}

func (s *Session) post(text string) {
	if err := s.poster.PostSystemEvent(text); err != nil && !errors.Is(err, dispatch.ErrClosed) {
		s.log.WithError(err).Debug("system event dropped")
	}
}

// =============================================================================
// ACTIONS
// =============================================================================

// SendText shows text as the user's own bubble and queues it for the
// connection. It never blocks on the network; a failed send is reported as
// a system event.
func (s *Session) SendText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if s.ctx.Err() != nil {
		return ErrClosed
	}

	select {
	case s.outbox <- text:
	default:
		return ErrSendBacklog
	}
	return s.poster.PostChatEvent(s.name, text, true)
}

// SendFile announces an outbound transfer and hands it to a worker. It
// returns once the transfer is queued.
func (s *Session) SendFile(path string) error {
	if err := s.poster.PostSystemEvent(transfer.StartedAnnouncement(path)); err != nil {
		return err
	}

	task := tasks.NewTask("send "+filepath.Base(path), path, func(ctx context.Context, t *tasks.Task) error {
		return s.conn.SendFile(ctx, path, func(sent, total int64) {
			if total > 0 {
				t.SetProgress(int(sent * 100 / total))
			}
		})
	})
	if err := s.runner.Submit(task); err != nil {
		s.post(transfer.FailedAnnouncement(path, err))
		return err
	}
	s.log.WithFields(logrus.Fields{"task_id": task.ID, "file": path}).Debug("transfer queued")
	return nil
}

// Close ends the session: it cancels every worker, closes the connection,
// waits for the receive loop and all transfers, and then closes the queue.
// Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.conn.Close()
		s.runner.Stop()
		s.wg.Wait()
		s.queue.Close()
		s.log.Info("session closed")
	})
	return err
}
