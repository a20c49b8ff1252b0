// Package surface defines the thin external-surface hook types exocortex's
// core exposes to collaborators outside the engine/storage layer: a
// websocket broadcaster that mirrors memory-lifecycle events to connected
// clients. The engine itself knows nothing about websockets; it only calls
// a plain func(memoryID string) registered via Engine.SetOnMemoryCreated.
package surface

import (
	"context"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Event is the message shape broadcast to every connected client.
type Event struct {
	Type     string `json:"type"`
	MemoryID string `json:"memory_id"`
}

// Hub tracks connected websocket clients and broadcasts events to all of
// them. The zero value is not usable; construct with NewHub.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

// Register adds a connection to the broadcast set; call the returned func
// to unregister (typically deferred from the handler goroutine).
func (h *Hub) Register(conn *websocket.Conn) func() {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}
}

// Broadcast sends event to every registered client, dropping (and logging
// nothing; the caller owns logging) any connection that errors -- a slow or
// gone client must not block other clients or the caller.
func (h *Hub) Broadcast(ctx context.Context, event Event) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = wsjson.Write(ctx, c, event)
	}
}

// OnMemoryCreated adapts Hub.Broadcast to the func(memoryID string) shape
// Engine.SetOnMemoryCreated expects.
func (h *Hub) OnMemoryCreated(ctx context.Context) func(memoryID string) {
	return func(memoryID string) {
		h.Broadcast(ctx, Event{Type: "memory_created", MemoryID: memoryID})
	}
}
