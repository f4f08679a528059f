package server

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp   ComponentStatus = "up"
	ComponentStatusDown ComponentStatus = "down"
)

// Health represents the complete health check response
type Health struct {
	Status        HealthStatus               `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version,omitempty"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Components    map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
	Details   any             `json:"details,omitempty"`
}

const healthCheckTimeout = 2 * time.Second

// handleHealth reports the board and upload store state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth(r.Context())

	code := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

// handleReady is a readiness probe: can we reach the upload store?
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.uploads.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "upload store unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) checkHealth(ctx context.Context) Health {
	health := Health{
		Timestamp:     time.Now().UTC(),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Components: map[string]ComponentHealth{
			"board": {
				Status:  ComponentStatusUp,
				Details: map[string]int{"messages": s.board.Len()},
			},
			"uploads": s.checkUploadsHealth(ctx),
		},
	}

	health.Status = HealthStatusHealthy
	for _, c := range health.Components {
		if c.Status == ComponentStatusDown {
			health.Status = HealthStatusUnhealthy
		}
	}
	return health
}

func (s *Server) checkUploadsHealth(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	if err := s.uploads.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "upload store check failed: " + err.Error(),
		}
	}

	return ComponentHealth{
		Status:    ComponentStatusUp,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
	}
}
