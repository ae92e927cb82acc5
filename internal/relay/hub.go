// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/opentalk-tui/internal/protocol"
)

// sendBuffer is the number of frames queued per client before it is
// considered too slow and dropped. With 32 KiB file chunks that is 8 MiB;
// clients pace file sends (transfer.rate_limit_kbps) to stay under it.
const sendBuffer = 256

// Client is one connected peer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	name string
	send chan []byte
}

// Name returns the display name the peer announced.
func (c *Client) Name() string { return c.name }

// Hub tracks connected peers and fans frames out to everyone except the
// sender.
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *outbound
	done       chan struct{} // closed when Run returns

	log logrus.FieldLogger
}

type outbound struct {
	from *Client // nil for relay notices
	to   *Client // set for a reply to a single client
	data []byte
}

// NewHub creates a new Hub.
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *outbound, sendBuffer),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run is the hub's main loop. It returns when ctx is done, after closing
// every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.clientsMu.Unlock()
			h.log.WithFields(logrus.Fields{"peer": client.name, "peers": count}).Info("peer joined")
			h.fanOut(client, h.notice(fmt.Sprintf("%s joined", client.name)))

		case client := <-h.unregister:
			if h.remove(client) {
				h.log.WithField("peer", client.name).Info("peer left")
				h.fanOut(client, h.notice(fmt.Sprintf("%s left", client.name)))
			}

		case msg := <-h.broadcast:
			if msg.to != nil {
				h.deliver(msg.to, msg.data)
				continue
			}
			h.fanOut(msg.from, msg.data)

		case <-ctx.Done():
			h.clientsMu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

// fanOut queues data for every client except from. Clients whose buffer is
// full are dropped. Runs only on the hub goroutine.
func (h *Hub) fanOut(from *Client, data []byte) {
	if data == nil {
		return
	}

	h.clientsMu.RLock()
	var slow []*Client
	for client := range h.clients {
		if client == from {
			continue
		}
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.clientsMu.RUnlock()

	for _, client := range slow {
		if h.remove(client) {
			h.log.WithField("peer", client.name).Warn("dropping slow peer")
		}
	}
}

// deliver queues data for a single client if it is still connected.
func (h *Hub) deliver(client *Client, data []byte) {
	h.clientsMu.RLock()
	_, ok := h.clients[client]
	delivered := false
	if ok {
		select {
		case client.send <- data:
			delivered = true
		default:
		}
	}
	h.clientsMu.RUnlock()

	if ok && !delivered && h.remove(client) {
		h.log.WithField("peer", client.name).Warn("dropping slow peer")
	}
}

func (h *Hub) remove(client *Client) bool {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	close(client.send)
	return true
}

func (h *Hub) notice(text string) []byte {
	raw, err := protocol.Encode(protocol.TypeSystem, protocol.SystemMessage{Text: text})
	if err != nil {
		h.log.WithError(err).Error("encode notice")
		return nil
	}
	return raw
}

// NewClient creates a client for an upgraded connection.
func (h *Hub) NewClient(conn *websocket.Conn, name string) *Client {
	return &Client{
		hub:  h,
		conn: conn,
		name: name,
		send: make(chan []byte, sendBuffer),
	}
}

// Register adds a client to the hub. It returns false if the hub has
// stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast forwards data from a client to every other client.
func (h *Hub) Broadcast(from *Client, data []byte) {
	select {
	case h.broadcast <- &outbound{from: from, data: data}:
	case <-h.done:
	}
}

// Reply queues data for client alone.
func (h *Hub) Reply(client *Client, data []byte) {
	select {
	case h.broadcast <- &outbound{to: client, data: data}:
	case <-h.done:
	}
}

// Peers returns the names of connected clients.
func (h *Hub) Peers() []string {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	names := make([]string, 0, len(h.clients))
	for client := range h.clients {
		names = append(names, client.name)
	}
	return names
}
