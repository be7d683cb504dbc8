// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package websocket

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vallum-project/vallum/internal/audit"
	"github.com/vallum-project/vallum/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024

	clientQueueSize = 256
)

// clientIDCounter gives every client a stable sort key so fan-out order is
// deterministic.
var clientIDCounter atomic.Uint64

// Client is one connected tail consumer.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan *audit.Entry

	// orgFilter restricts which entries this client receives. Empty means
	// all organizations, which the API layer only grants to master.
	orgFilter string
}

// admits reports whether the client's filter accepts the entry.
func (c *Client) admits(e *audit.Entry) bool {
	return c.orgFilter == "" || c.orgFilter == e.OrgID
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Cross-origin policy is handled by the router's CORS middleware; by
	// the time the upgrade runs, the request already passed it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve upgrades the request and attaches a client with the given
// organization filter to the hub. The caller has already authenticated and
// resolved the request; orgFilter must come from the resolved tenant
// context, never from client input.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, orgFilter string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		id:        clientIDCounter.Add(1),
		hub:       hub,
		conn:      conn,
		send:      make(chan *audit.Entry, clientQueueSize),
		orgFilter: orgFilter,
	}
	hub.register <- client

	go client.writePump()
	go client.readPump()
	return nil
}

// readPump consumes control frames and detects disconnects. Tail clients
// never send data messages; anything beyond the size limit tears the
// connection down.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Msg("audit tail connection closed unexpectedly")
			}
			return
		}
	}
}

// writePump streams entries and keepalive pings to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case entry, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(entry); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
