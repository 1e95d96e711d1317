// Package handlers provides the HTTP handlers for the chat front-end.
// Handlers coordinate between the HTTP layer and the service layer,
// handling form parsing, redirects and response formatting.
//
// This package includes handlers for:
//   - Health checks and readiness probes
//   - The Google sign-in flow (login, callback, logout)
//   - The login and chat pages
//   - The chat JSON API (models, chat, history, usage, uploads)
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ieraasyl/LiteChat/pkg/utils"
	"github.com/rs/zerolog/log"
)

// Pinger is a dependency the readiness probe can check.
// *database.RedisDB implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints for monitoring and orchestration.
type HealthHandler struct {
	redis Pinger // nil when Redis is disabled
}

// NewHealthHandler creates a new health handler. Pass nil when Redis is
// disabled; readiness then reports only the process itself.
//
// Example:
//
//	healthHandler := handlers.NewHealthHandler(redisDB)
//	r.Get("/health", healthHandler.Health)
//	r.Get("/ready", healthHandler.Ready)
func NewHealthHandler(redis Pinger) *HealthHandler {
	return &HealthHandler{redis: redis}
}

// HealthResponse represents the health check response structure.
//
// JSON example:
//
//	{
//	  "status": "ok",
//	  "timestamp": "2024-01-20T14:30:00Z",
//	  "services": {"redis": "healthy"}
//	}
type HealthResponse struct {
	Status    string            `json:"status"`             // "ok" or "degraded"
	Timestamp time.Time         `json:"timestamp"`          // Current server time
	Services  map[string]string `json:"services,omitempty"` // Readiness only
}

// Health is the liveness probe. It always returns 200 {"status": "ok"}.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Ready is the readiness probe. With Redis enabled it pings Redis with a
// 5-second timeout and returns 503 "degraded" when the ping fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := map[string]string{"app": "healthy"}
	allHealthy := true

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("Redis health check failed")
			services["redis"] = "unhealthy"
			allHealthy = false
		} else {
			services["redis"] = "healthy"
		}
	}

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Services:  services,
	}

	statusCode := http.StatusOK
	if !allHealthy {
		response.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	utils.RespondWithJSON(w, r, statusCode, response)
}
