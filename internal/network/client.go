// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jeranaias/opentalk-tui/internal/event"
	"github.com/jeranaias/opentalk-tui/internal/protocol"
	"github.com/jeranaias/opentalk-tui/internal/transfer"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures connections made by NewDialer.
type Options struct {
	// Name is the display name sent in the hello frame.
	Name string

	// Stager receives inbound files. Required for ReceiveLoop.
	Stager *transfer.Stager

	// RateLimitKBps paces outbound file chunks. Zero or less disables pacing.
	RateLimitKBps int

	// HandshakeTimeout bounds the websocket upgrade. 0 means 10s.
	HandshakeTimeout time.Duration

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// NewDialer returns a Dialer that connects to ws://address:port/ws and
// announces opts.Name.
func NewDialer(opts Options) Dialer {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	ws := &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: opts.HandshakeTimeout,
	}

	return func(ctx context.Context, address string, port int) (Conn, error) {
		url := "ws://" + net.JoinHostPort(address, strconv.Itoa(port)) + "/ws"
		conn, _, err := ws.DialContext(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", url, err)
		}

		c := newClient(conn, opts)
		if err := c.writeFrame(ctx, protocol.TypeHello, protocol.HelloMessage{Name: opts.Name}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("hello to %s: %w", url, err)
		}
		c.log.WithField("url", url).Info("connected")
		return c, nil
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a Conn over a gorilla websocket.
//
// Reads happen only in ReceiveLoop. Writes from SendText and concurrent
// SendFile calls are serialized frame by frame, so transfers interleave on
// the wire and are reassembled by id on the other side.
type Client struct {
	conn    *websocket.Conn
	stager  *transfer.Stager
	limiter *rate.Limiter
	log     logrus.FieldLogger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, opts Options) *Client {
	c := &Client{
		conn:   conn,
		stager: opts.Stager,
		log:    opts.Logger,
		done:   make(chan struct{}),
	}
	if opts.RateLimitKBps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitKBps*1024), protocol.ChunkSize)
	}
	return c
}

// SendText sends one chat line.
func (c *Client) SendText(ctx context.Context, text string) error {
	return c.writeFrame(ctx, protocol.TypeChat, protocol.ChatMessage{Text: text})
}

// SendFile streams a regular file as file_begin, file_chunk..., file_end.
// If streaming fails after file_begin, a file_abort is sent so receivers
// drop the partial file.
func (c *Client) SendFile(ctx context.Context, path string, progress Progress) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}

	id := uuid.New().String()
	name := filepath.Base(path)
	log := c.log.WithFields(logrus.Fields{"transfer_id": id, "file": name, "size": info.Size()})

	if err := c.writeFrame(ctx, protocol.TypeFileBegin, protocol.FileBeginMessage{
		ID:   id,
		Name: name,
		Size: info.Size(),
	}); err != nil {
		return err
	}
	log.Debug("sending file")

	if err := c.streamChunks(ctx, id, f, info.Size(), progress); err != nil {
		// Best effort; the connection may already be gone
		abortCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		_ = c.writeFrame(abortCtx, protocol.TypeFileAbort, protocol.FileAbortMessage{ID: id, Reason: err.Error()})
		cancel()
		log.WithError(err).Warn("file send failed")
		return err
	}

	if err := c.writeFrame(ctx, protocol.TypeFileEnd, protocol.FileEndMessage{ID: id}); err != nil {
		return err
	}
	log.Info("file sent")
	return nil
}

func (c *Client) streamChunks(ctx context.Context, id string, r io.Reader, total int64, progress Progress) error {
	buf := make([]byte, protocol.ChunkSize)
	var sent int64
	for seq := 0; ; seq++ {
		n, rerr := r.Read(buf)
		if n > 0 {
			if c.limiter != nil {
				if err := c.limiter.WaitN(ctx, n); err != nil {
					return fmt.Errorf("pace transfer: %w", err)
				}
			}
			if err := c.writeFrame(ctx, protocol.TypeFileChunk, protocol.FileChunkMessage{
				ID:   id,
				Seq:  seq,
				Data: buf[:n],
			}); err != nil {
				return err
			}
			sent += int64(n)
			if progress != nil {
				progress(sent, total)
			}
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read file: %w", rerr)
		}
	}
}

// writeFrame encodes and writes one frame under the write lock.
func (c *Client) writeFrame(ctx context.Context, msgType protocol.MessageType, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	raw, err := protocol.Encode(msgType, data)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("write %s: %w", msgType, err)
	}
	return nil
}

// Close sends a close frame and closes the socket.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

// =============================================================================
// RECEIVE LOOP
// =============================================================================

// ReceiveLoop reads frames until the connection fails, the peer closes it,
// or ctx is done. It returns nil on a normal close and ctx.Err() when
// canceled. Partial inbound files are discarded on exit.
func (c *Client) ReceiveLoop(ctx context.Context, sink Sink) error {
	if c.stager == nil {
		return errors.New("network: receive loop needs a stager")
	}

	c.conn.SetReadLimit(protocol.MaxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Unblock ReadMessage when ctx ends
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.pingLoop(pingDone)

	defer func() {
		for _, name := range c.stager.AbortAll() {
			_ = sink.PostSystemEvent(fmt.Sprintf("File transfer interrupted: %s", name))
		}
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-c.done:
				return ErrClosed
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		if err := c.handleFrame(message, sink); err != nil {
			c.log.WithError(err).Warn("dropped inbound frame")
			_ = sink.PostSystemEvent("Ignored malformed message from peer")
		}
	}
}

func (c *Client) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// handleFrame turns one inbound frame into producer calls. A returned error
// means the frame itself was unusable.
func (c *Client) handleFrame(data []byte, sink Sink) error {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		return err
	}

	switch env.Type {
	case protocol.TypeChat:
		var msg protocol.ChatMessage
		if err := env.Decode(&msg); err != nil {
			return err
		}
		sender := msg.Sender
		if sender == "" {
			sender = "unknown"
		}
		return ignoreEmpty(sink.PostChatEvent(sender, msg.Text, false))

	case protocol.TypeSystem:
		var msg protocol.SystemMessage
		if err := env.Decode(&msg); err != nil {
			return err
		}
		return ignoreEmpty(sink.PostSystemEvent(msg.Text))

	case protocol.TypeFileBegin:
		var msg protocol.FileBeginMessage
		if err := env.Decode(&msg); err != nil {
			return err
		}
		if _, err := c.stager.Begin(msg.ID, msg.Name, msg.Size); err != nil {
			_ = sink.PostSystemEvent(fmt.Sprintf("Incoming file rejected: %v", err))
		}
		return nil

	case protocol.TypeFileChunk:
		var msg protocol.FileChunkMessage
		if err := env.Decode(&msg); err != nil {
			return err
		}
		if err := c.stager.Write(msg.ID, msg.Data); err != nil {
			if name := c.stager.Abort(msg.ID); name != "" {
				_ = sink.PostSystemEvent(transfer.FailedAnnouncement(name, err))
			}
			c.log.WithError(err).WithField("transfer_id", msg.ID).Debug("chunk dropped")
		}
		return nil

	case protocol.TypeFileEnd:
		var msg protocol.FileEndMessage
		if err := env.Decode(&msg); err != nil {
			return err
		}
		name, err := c.stager.Commit(msg.ID)
		if err != nil {
			if !errors.Is(err, transfer.ErrUnknownTransfer) {
				_ = sink.PostSystemEvent(fmt.Sprintf("Incoming file failed: %v", err))
			}
			return nil
		}
		return sink.PostFileOffer(name)

	case protocol.TypeFileAbort:
		var msg protocol.FileAbortMessage
		if err := env.Decode(&msg); err != nil {
			return err
		}
		if name := c.stager.Abort(msg.ID); name != "" {
			_ = sink.PostSystemEvent(fmt.Sprintf("File transfer canceled by sender: %s", name))
		}
		return nil

	case protocol.TypeError:
		var msg protocol.ErrorMessage
		if err := env.Decode(&msg); err != nil {
			return err
		}
		return sink.PostSystemEvent(fmt.Sprintf("Server error: %s", msg.Message))

	default:
		c.log.WithField("type", env.Type).Debug("ignoring unknown frame type")
		return nil
	}
}

// ignoreEmpty drops validation failures for empty payloads, which a peer
// may legitimately send.
func ignoreEmpty(err error) error {
	if errors.Is(err, event.ErrNoPayload) {
		return nil
	}
	return err
}
