// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/opentalk-tui/internal/protocol"
	"github.com/jeranaias/opentalk-tui/internal/util"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	helloWait  = 10 * time.Second

	maxNameWidth = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server accepts peer connections and relays their frames through a Hub.
type Server struct {
	hub     *Hub
	log     logrus.FieldLogger
	limiter *ConnectLimiter
}

// NewServer creates a new server instance.
func NewServer(hub *Hub, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{hub: hub, log: log, limiter: DefaultConnectLimiter()}
}

// WithLimiter replaces the per-address connection limiter.
func (s *Server) WithLimiter(l *ConnectLimiter) *Server {
	s.limiter = l
	return s
}

// Handler returns the relay's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", Limit(s.limiter, s.log)(http.HandlerFunc(s.HandleWebSocket)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %d\n", len(s.hub.Peers()))
	})
	return Chain(Recover(s.log), LogRequests(s.log))(mux)
}

// ListenAndServe runs the hub and an HTTP server on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, log logrus.FieldLogger) error {
	hub := NewHub(log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewServer(hub, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.WithField("addr", addr).Info("relay listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("relay: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	return nil
}

// HandleWebSocket upgrades a connection, waits for its hello, and then
// relays its frames until it disconnects.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(protocol.MaxFrameSize)

	name, err := readHello(conn)
	if err != nil {
		s.log.WithError(err).WithField("remote", r.RemoteAddr).Warn("rejected peer")
		if raw, encErr := protocol.Encode(protocol.TypeError, protocol.ErrorMessage{
			Code:    protocol.ErrCodeNoHello,
			Message: err.Error(),
		}); encErr == nil {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.TextMessage, raw)
		}
		conn.Close()
		return
	}

	client := s.hub.NewClient(conn, name)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	go s.writePump(client)
	s.readPump(client)
}

// readHello reads the mandatory first frame and returns a cleaned name.
func readHello(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(helloWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read hello: %w", err)
	}

	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		return "", err
	}
	if env.Type != protocol.TypeHello {
		return "", fmt.Errorf("first frame was %s, want %s", env.Type, protocol.TypeHello)
	}

	var hello protocol.HelloMessage
	if err := env.Decode(&hello); err != nil {
		return "", err
	}
	name := util.TruncateWidth(util.SingleLine(hello.Name), maxNameWidth)
	if name == "" || strings.EqualFold(name, "SYSTEM") {
		return "", fmt.Errorf("invalid display name %q", hello.Name)
	}
	return name, nil
}

func (s *Server) readPump(c *Client) {
	defer func() {
		s.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.WithError(err).WithField("peer", c.name).Debug("read failed")
			}
			return
		}

		out, err := stamp(c.name, data)
		if err != nil {
			s.log.WithError(err).WithField("peer", c.name).Debug("rejected frame")
			if raw, encErr := protocol.Encode(protocol.TypeError, protocol.ErrorMessage{
				Code:    protocol.ErrCodeInvalidMsg,
				Message: err.Error(),
			}); encErr == nil {
				s.hub.Reply(c, raw)
			}
			continue
		}
		if out != nil {
			s.hub.Broadcast(c, out)
		}
	}
}

// stamp validates a frame from sender and returns what to forward. Chat and
// file_begin frames get the sender's name written in; the rest pass through.
func stamp(sender string, data []byte) ([]byte, error) {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case protocol.TypeChat:
		var msg protocol.ChatMessage
		if err := env.Decode(&msg); err != nil {
			return nil, err
		}
		msg.Sender = sender
		return protocol.Encode(protocol.TypeChat, msg)

	case protocol.TypeFileBegin:
		var msg protocol.FileBeginMessage
		if err := env.Decode(&msg); err != nil {
			return nil, err
		}
		msg.Sender = sender
		return protocol.Encode(protocol.TypeFileBegin, msg)

	case protocol.TypeFileChunk, protocol.TypeFileEnd, protocol.TypeFileAbort:
		return data, nil

	case protocol.TypeHello:
		// Repeated hello is harmless
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported frame type %q", env.Type)
	}
}

func (s *Server) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
