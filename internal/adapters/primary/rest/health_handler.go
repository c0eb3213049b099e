package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/ports"
	"github.com/climaops/weather-service/internal/version"
)

// checkTimeout bounds each dependency probe during readiness checks.
const checkTimeout = 2 * time.Second

// HealthChecker probes one dependency. A nil return means healthy.
type HealthChecker func(ctx context.Context) error

// BreakerStats reports circuit breaker state for the stats endpoint.
type BreakerStats interface {
	GetStats() map[string]interface{}
}

// HealthHandler serves liveness, readiness, stats and service metadata
// endpoints. Dependency checkers are registered by the application wiring,
// so the handler reports on whatever backends are actually in use.
type HealthHandler struct {
	checkers  map[string]HealthChecker
	history   ports.HistoryRepository
	breakers  BreakerStats
	startedAt time.Time
	logger    *zap.Logger
}

// NewHealthHandler creates a handler with no registered checkers.
func NewHealthHandler(history ports.HistoryRepository, breakers BreakerStats, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checkers:  make(map[string]HealthChecker),
		history:   history,
		breakers:  breakers,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

// RegisterChecker adds a named dependency probe used by the readiness
// endpoint. Not safe to call after the server starts.
func (h *HealthHandler) RegisterChecker(name string, checker HealthChecker) {
	h.checkers[name] = checker
}

// HealthStatus is the JSON body of health and readiness responses.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services,omitempty"`
}

// Health handles GET /health. It is a cheap liveness signal and always
// returns 200; readiness is the endpoint that consults dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
	})
}

// Liveness handles GET /health/liveness.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
	})
}

// Readiness handles GET /health/readiness. Every registered dependency is
// probed; if any probe fails the response is 503 with per-service detail.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		Services:  make(map[string]string, len(h.checkers)),
	}

	for name, checker := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := checker(ctx)
		cancel()

		if err != nil {
			status.Services[name] = "unhealthy: " + err.Error()
			status.Status = "unhealthy"

			h.logger.Warn("readiness check failed",
				zap.String("service", name),
				zap.Error(err))
			continue
		}

		status.Services[name] = "healthy"
	}

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	h.respond(w, code, status)
}

// HistoryStatsResponse summarizes the recorded lookups.
type HistoryStatsResponse struct {
	TotalQueries   int64      `json:"total_queries"`
	CachedQueries  int64      `json:"cached_queries"`
	DistinctCities int64      `json:"distinct_cities"`
	LastQueryAt    *time.Time `json:"last_query_at,omitempty"`
}

// StatsResponse is the JSON body of the stats endpoint.
type StatsResponse struct {
	History         HistoryStatsResponse   `json:"history"`
	CircuitBreakers map[string]interface{} `json:"circuit_breakers,omitempty"`
	UptimeSeconds   float64                `json:"uptime_seconds"`
}

// Stats handles GET /api/v1/stats with aggregate lookup statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.history.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to collect history stats", zap.Error(err))
		h.respond(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "STATS_ERROR",
			Message: "Failed to collect service statistics",
		})
		return
	}

	response := StatsResponse{
		History: HistoryStatsResponse{
			TotalQueries:   stats.TotalQueries,
			CachedQueries:  stats.CachedQueries,
			DistinctCities: stats.DistinctCities,
		},
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	}
	if !stats.LastQueryAt.IsZero() {
		t := stats.LastQueryAt
		response.History.LastQueryAt = &t
	}
	if h.breakers != nil {
		response.CircuitBreakers = h.breakers.GetStats()
	}

	h.respond(w, http.StatusOK, response)
}

// Home handles GET / with a service descriptor for API discovery.
func (h *HealthHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, map[string]string{
		"message": "Weather Service API",
		"version": version.Version,
		"weather": "/api/v1/weather",
		"history": "/api/v1/weather/history",
		"stats":   "/api/v1/stats",
		"health":  "/health",
		"metrics": "/metrics",
	})
}

// Version handles GET /version with build metadata.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, version.Get())
}

func (h *HealthHandler) respond(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
