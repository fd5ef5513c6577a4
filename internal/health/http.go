package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// Handler serves /health (liveness plus component detail) and /readiness.
type Handler struct {
	manager *Manager
}

// NewHandler wraps a manager.
func NewHandler(m *Manager) *Handler {
	return &Handler{manager: m}
}

// Register mounts the health routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/readiness", h.handleReadiness)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := h.manager.Results()
	status := http.StatusOK
	overall := "healthy"
	for _, res := range results {
		if res.Critical && res.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
			break
		}
		if res.Status != StatusHealthy {
			overall = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     overall,
		"timestamp":  time.Now().UTC(),
		"components": results,
	})
}

func (h *Handler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Ready() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
