package http

import (
	"net/http"
	"time"
)

// HealthHandler reports liveness and whether letter generation is enabled.
type HealthHandler struct {
	GeneratorAvailable bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status          string `json:"status"`
	GeminiAvailable bool   `json:"geminiAvailable"`
	Timestamp       string `json:"timestamp"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		GeminiAvailable: h.GeneratorAvailable,
		Timestamp:       now().UTC().Format(time.RFC3339Nano),
	})
}
