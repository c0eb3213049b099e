package middleware

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/ports"
	"github.com/climaops/weather-service/internal/observability"
)

// RateLimitMiddleware enforces a fixed-window request quota per client IP.
// Requests to exempt paths bypass the quota entirely. When the limiter
// backend is unreachable the middleware lets requests through so that a
// Redis outage does not take the API down with it.
type RateLimitMiddleware struct {
	limiter     ports.RateLimitService
	limit       int
	window      time.Duration
	exemptPaths []string
	telemetry   *observability.Telemetry
	logger      *zap.Logger
}

// NewRateLimitMiddleware creates a rate limiting middleware.
//
// Parameters:
//   - limiter: backend that tracks per-client counters
//   - limit: maximum requests allowed per window
//   - window: length of the fixed window
//   - exemptPaths: path prefixes that are never rate limited
//   - telemetry: metrics recorder, may be nil
//   - logger: structured logger
func NewRateLimitMiddleware(limiter ports.RateLimitService, limit int, window time.Duration, exemptPaths []string, telemetry *observability.Telemetry, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:     limiter,
		limit:       limit,
		window:      window,
		exemptPaths: exemptPaths,
		telemetry:   telemetry,
		logger:      logger,
	}
}

type rateLimitedResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Middleware wraps an http.Handler with rate limiting.
func (m *RateLimitMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.isExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := GetClientIP(r)
		result, err := m.limiter.Allow(r.Context(), clientIP)
		if err != nil {
			// Fail open: a broken limiter must not block traffic.
			m.logger.Warn("rate limiter unavailable, allowing request",
				zap.String("client_ip", clientIP),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}

			m.telemetry.RecordRateLimited(r.Context(), r.URL.Path)
			m.logger.Warn("rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("path", r.URL.Path),
				zap.Int("retry_after_seconds", retryAfter))

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(rateLimitedResponse{
				Error:      "Rate limit exceeded",
				Message:    fmt.Sprintf("Maximum %d requests per %d seconds allowed", m.limit, int(m.window.Seconds())),
				RetryAfter: retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isExempt reports whether the path matches one of the exempt prefixes.
// A prefix of "/health" covers "/health" itself and everything under it.
func (m *RateLimitMiddleware) isExempt(path string) bool {
	for _, exempt := range m.exemptPaths {
		exempt = strings.TrimSpace(exempt)
		if exempt == "" {
			continue
		}
		trimmed := strings.TrimSuffix(exempt, "/")
		if path == trimmed || strings.HasPrefix(path, trimmed+"/") {
			return true
		}
	}
	return false
}
