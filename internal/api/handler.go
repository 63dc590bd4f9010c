// Package api provides the bot's HTTP surface: health, metrics and the
// Telegram webhook.
package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// SessionCounter reports how many users have live conversations.
type SessionCounter interface {
	Len() int
}

// Handler serves the health endpoint.
type Handler struct {
	model    string
	backend  string
	sessions SessionCounter
	started  time.Time
}

// NewHandler creates a Handler describing the running configuration.
func NewHandler(model, backend string, sessions SessionCounter) *Handler {
	return &Handler{
		model:    model,
		backend:  backend,
		sessions: sessions,
		started:  time.Now(),
	}
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status        string `json:"status"`
	LLMModel      string `json:"llm_model"`
	MediaBackend  string `json:"media_backend"`
	Sessions      int    `json:"sessions"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Health reports liveness and a few configuration facts.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	sessions := 0
	if h.sessions != nil {
		sessions = h.sessions.Len()
	}
	JSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		LLMModel:      h.model,
		MediaBackend:  h.backend,
		Sessions:      sessions,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
