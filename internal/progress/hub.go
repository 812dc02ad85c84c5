// Package progress streams scorecard changes to connected browsers over
// WebSocket.
package progress

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/secretlab/internal/scoring"
	"github.com/coder/websocket"
)

const (
	publishBuffer = 64
	writeTimeout  = 5 * time.Second
)

// Hub fans scorecard snapshots out to every registered connection.
type Hub struct {
	mu      sync.RWMutex
	active  map[string]*websocket.Conn
	updates chan scoring.Snapshot
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active:  make(map[string]*websocket.Conn),
		updates: make(chan scoring.Snapshot, publishBuffer),
	}
}

// Register adds a connection under the given subscriber id.
func (h *Hub) Register(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, exists := h.active[id]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "subscriber replaced")
	}
	h.active[id] = conn
	slog.Info("Progress subscriber registered", "subscriber_id", id)
}

// Unregister removes the connection if it is still the active one.
func (h *Hub) Unregister(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.active[id]; exists && current == conn {
		delete(h.active, id)
		slog.Info("Progress subscriber unregistered", "subscriber_id", id)
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active)
}

// Publish queues a snapshot without blocking. When the buffer is full the
// snapshot is dropped; the next one carries the full state anyway.
func (h *Hub) Publish(s scoring.Snapshot) {
	select {
	case h.updates <- s:
	default:
		slog.Warn("Progress update dropped, buffer full")
	}
}

// Run delivers queued snapshots until ctx is done. Listeners run outside the
// scorecard lock, so snapshots can arrive out of order; older ones are dropped.
func (h *Hub) Run(ctx context.Context) {
	var last uint64
	for {
		select {
		case s := <-h.updates:
			if s.Seq != 0 && s.Seq <= last {
				slog.Debug("Stale progress update dropped", "seq", s.Seq, "last", last)
				continue
			}
			last = s.Seq
			h.broadcast(ctx, s)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *Hub) broadcast(ctx context.Context, s scoring.Snapshot) {
	data, err := json.Marshal(message{Type: "progress", Snapshot: s})
	if err != nil {
		slog.Error("Failed to encode progress update", "error", err)
		return
	}

	h.mu.RLock()
	conns := make(map[string]*websocket.Conn, len(h.active))
	for id, c := range h.active {
		conns[id] = c
	}
	h.mu.RUnlock()

	for id, conn := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
			slog.Debug("Progress write failed", "subscriber_id", id, "error", err)
		}
		cancel()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.active {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.active, id)
	}
}

// message is the wire format sent to subscribers.
type message struct {
	Type     string           `json:"type"`
	Snapshot scoring.Snapshot `json:"snapshot"`
}
