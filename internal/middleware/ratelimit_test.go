package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/ports"
)

// MockRateLimiter is a mock implementation of the RateLimitService interface.
type MockRateLimiter struct {
	mock.Mock
}

// Allow mocks the limiter Allow method.
func (m *MockRateLimiter) Allow(ctx context.Context, identifier string) (ports.RateLimitResult, error) {
	args := m.Called(ctx, identifier)
	return args.Get(0).(ports.RateLimitResult), args.Error(1)
}

// Reset mocks the limiter Reset method.
func (m *MockRateLimiter) Reset(ctx context.Context, identifier string) error {
	args := m.Called(ctx, identifier)
	return args.Error(0)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// TestRateLimitMiddleware_Allowed verifies that permitted requests pass
// through with quota headers attached.
func TestRateLimitMiddleware_Allowed(t *testing.T) {
	mockLimiter := new(MockRateLimiter)
	mockLimiter.On("Allow", mock.Anything, mock.Anything).Return(ports.RateLimitResult{
		Allowed:   true,
		Limit:     5,
		Remaining: 3,
	}, nil)

	m := NewRateLimitMiddleware(mockLimiter, 5, time.Minute, nil, nil, zap.NewNop())
	handler := m.Middleware(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/weather?city=London", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "5", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "3", rr.Header().Get("X-RateLimit-Remaining"))
	mockLimiter.AssertExpectations(t)
}

// TestRateLimitMiddleware_Blocked verifies the 429 response shape and the
// Retry-After header.
func TestRateLimitMiddleware_Blocked(t *testing.T) {
	mockLimiter := new(MockRateLimiter)
	mockLimiter.On("Allow", mock.Anything, mock.Anything).Return(ports.RateLimitResult{
		Allowed:    false,
		Limit:      2,
		Remaining:  0,
		RetryAfter: 1200 * time.Millisecond,
	}, nil)

	m := NewRateLimitMiddleware(mockLimiter, 2, time.Minute, nil, nil, zap.NewNop())
	handler := m.Middleware(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/weather?city=London", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	var body struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		RetryAfter int    `json:"retry_after"`
	}

	err := json.Unmarshal(rr.Body.Bytes(), &body)
	assert.NoError(t, err)
	assert.Equal(t, "Rate limit exceeded", body.Error)
	assert.Equal(t, "Maximum 2 requests per 60 seconds allowed", body.Message)
	assert.Equal(t, 2, body.RetryAfter)
}

// TestRateLimitMiddleware_RetryAfterFloor verifies that Retry-After never
// drops below one second even when the window is about to roll.
func TestRateLimitMiddleware_RetryAfterFloor(t *testing.T) {
	mockLimiter := new(MockRateLimiter)
	mockLimiter.On("Allow", mock.Anything, mock.Anything).Return(ports.RateLimitResult{
		Allowed:    false,
		Limit:      2,
		Remaining:  0,
		RetryAfter: 0,
	}, nil)

	m := NewRateLimitMiddleware(mockLimiter, 2, time.Minute, nil, nil, zap.NewNop())
	handler := m.Middleware(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/weather?city=London", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

// TestRateLimitMiddleware_ExemptPaths verifies that exempt prefixes bypass
// the limiter entirely.
func TestRateLimitMiddleware_ExemptPaths(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		exempt bool
	}{
		{name: "exact match", path: "/health", exempt: true},
		{name: "nested path", path: "/health/readiness", exempt: true},
		{name: "metrics", path: "/metrics", exempt: true},
		{name: "similar prefix not exempt", path: "/healthz", exempt: false},
		{name: "api path not exempt", path: "/api/v1/weather", exempt: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockLimiter := new(MockRateLimiter)

			if !tt.exempt {
				mockLimiter.On("Allow", mock.Anything, mock.Anything).Return(ports.RateLimitResult{
					Allowed:   true,
					Limit:     5,
					Remaining: 4,
				}, nil)
			}

			m := NewRateLimitMiddleware(mockLimiter, 5, time.Minute, []string{"/health", "/metrics"}, nil, zap.NewNop())
			handler := m.Middleware(okHandler())

			req := httptest.NewRequest("GET", tt.path, nil)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)

			if tt.exempt {
				mockLimiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything)
			} else {
				mockLimiter.AssertExpectations(t)
			}
		})
	}
}

// TestRateLimitMiddleware_FailOpen verifies that a broken limiter backend
// lets requests through instead of rejecting them.
func TestRateLimitMiddleware_FailOpen(t *testing.T) {
	mockLimiter := new(MockRateLimiter)
	mockLimiter.On("Allow", mock.Anything, mock.Anything).
		Return(ports.RateLimitResult{}, errors.New("connection refused"))

	m := NewRateLimitMiddleware(mockLimiter, 5, time.Minute, nil, nil, zap.NewNop())
	handler := m.Middleware(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/weather?city=London", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
