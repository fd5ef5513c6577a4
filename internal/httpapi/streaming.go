// Package httpapi serves the admin HTTP surface of the worker: live
// stage-event streams for dashboards.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tabularis-ai/tabularis/internal/streaming"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The admin port is not exposed beyond the cluster; origin policy is
	// the ingress proxy's job.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamingHandler serves stage events for one session over a websocket.
type StreamingHandler struct {
	hub    *streaming.Hub
	logger *zap.Logger
}

// NewStreamingHandler wraps the hub.
func NewStreamingHandler(hub *streaming.Hub, logger *zap.Logger) *StreamingHandler {
	return &StreamingHandler{hub: hub, logger: logger}
}

// Register mounts the stream routes on mux.
func (h *StreamingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/stream/ws", h.handleWS)
}

// handleWS streams stage events for one session.
// GET /stream/ws?session_id=<id>[&last_seq=<n>]
func (h *StreamingHandler) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}
	var lastSeq uint64
	if q := r.URL.Query().Get("last_seq"); q != "" {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil {
			lastSeq = n
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := h.hub.Subscribe(sessionID, 256)
	defer h.hub.Unsubscribe(sessionID, ch)

	// Replay what the client missed before going live.
	for _, ev := range h.hub.ReplaySince(sessionID, lastSeq) {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	// Reader pump: clients only send pongs and close frames.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
