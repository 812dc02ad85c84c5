package progress

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/secretlab/internal/scoring"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// SnapshotSource returns the current scorecard state.
type SnapshotSource interface {
	Snapshot() scoring.Snapshot
}

// WebSocketHandler upgrades requests and subscribes them to the hub.
type WebSocketHandler struct {
	hub            *Hub
	source         SnapshotSource
	originPatterns []string
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(hub *Hub, source SnapshotSource, originPatterns []string) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, source: source, originPatterns: originPatterns}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	id := uuid.NewString()
	h.hub.Register(id, ws)
	defer h.hub.Unregister(id, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := writeJSON(ctx, ws, message{Type: "progress", Snapshot: h.source.Snapshot()}); err != nil {
		slog.Debug("Failed to send initial progress", "error", err)
		return
	}

	h.readLoop(ctx, ws, id)
}

// readLoop answers pings and returns when the client goes away.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, id string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "subscriber_id", id)
			} else {
				slog.Debug("WebSocket read error", "error", err, "subscriber_id", id)
			}
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "ping":
			if err := writeJSON(ctx, ws, map[string]string{"type": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		case "refresh":
			if err := writeJSON(ctx, ws, message{Type: "progress", Snapshot: h.source.Snapshot()}); err != nil {
				slog.Debug("Failed to send progress", "error", err)
			}
		}
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
