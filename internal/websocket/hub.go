// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/vallum-project/vallum/internal/audit"
	"github.com/vallum-project/vallum/internal/logging"
	"github.com/vallum-project/vallum/internal/metrics"
)

// Hub maintains the set of connected tail clients and fans audit entries
// out to them, applying each client's organization filter.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *audit.Entry
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub. Run it under a supervisor via Serve.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *audit.Entry, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Publish implements audit.Publisher. It never blocks: if the broadcast
// queue is full the entry is skipped for the tail (it is already durable in
// the store, so nothing is lost but liveness).
func (h *Hub) Publish(e *audit.Entry) {
	select {
	case h.broadcast <- e:
	default:
	}
}

// Serve runs the hub loop until the context is canceled, then closes every
// client. Lifecycle events are drained before broadcasts so client state is
// settled when a fan-out happens.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.register:
			h.addClient(client)
			continue
		case client := <-h.unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case entry := <-h.broadcast:
			h.fanOut(entry)
		}
	}
}

// String names the hub for supervisor logs.
func (h *Hub) String() string { return "audit-tail-hub" }

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.TailConnections.Inc()
	logging.Info().
		Str("org_filter", c.orgFilter).
		Int("total_clients", total).
		Msg("audit tail client connected")
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.TailConnections.Dec()
		logging.Info().
			Int("total_clients", total).
			Msg("audit tail client disconnected")
	}
}

// fanOut delivers an entry to every client whose filter admits it, in a
// stable order. Clients with a full send queue are dropped.
func (h *Hub) fanOut(entry *audit.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var toDrop []*Client
	for _, c := range clients {
		if !c.admits(entry) {
			continue
		}
		select {
		case c.send <- entry:
			metrics.TailMessagesSent.Inc()
		default:
			toDrop = append(toDrop, c)
		}
	}

	for _, c := range toDrop {
		delete(h.clients, c)
		close(c.send)
		metrics.TailConnections.Dec()
		logging.Warn().Msg("audit tail client dropped: send queue full")
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	count := len(h.clients)
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		metrics.TailConnections.Dec()
	}
	h.mu.Unlock()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "audit-tail-hub").
		Str("reason", reason).
		Int("clients_closed", count).
		Msg("audit tail hub stopped")
}
