package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/ports"
)

// MemoryRateLimiter is the in-process fixed-window fallback, used when
// Redis is unreachable at startup. Windows are per process instance, so
// a client talking to several replicas gets a window on each.
type MemoryRateLimiter struct {
	mu      sync.RWMutex
	clients map[string]*clientWindow
	limit   int
	window  time.Duration
	logger  *zap.Logger
}

// clientWindow tracks the current fixed window for a single client.
type clientWindow struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// NewMemoryRateLimiter creates an in-memory fixed-window limiter.
//
// Parameters:
//   - limit: Maximum requests allowed per window
//   - window: Window length
//   - logger: Zap logger for rate limiter operations
//
// Returns:
//   - ports.RateLimitService: In-memory rate limiter implementation
func NewMemoryRateLimiter(limit int, window time.Duration, logger *zap.Logger) ports.RateLimitService {
	rl := &MemoryRateLimiter{
		clients: make(map[string]*clientWindow),
		limit:   limit,
		window:  window,
		logger:  logger,
	}

	go rl.cleanup()

	return rl
}

// Allow checks whether the identifier may make another request in its
// current window, consuming one slot when it may. Blocked requests do
// not advance the counter.
func (rl *MemoryRateLimiter) Allow(ctx context.Context, identifier string) (ports.RateLimitResult, error) {
	select {
	case <-ctx.Done():
		return ports.RateLimitResult{}, ctx.Err()
	default:
	}

	now := time.Now()

	rl.mu.RLock()

	client, exists := rl.clients[identifier]

	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()

		if client, exists = rl.clients[identifier]; !exists {
			client = &clientWindow{}
			rl.clients[identifier] = client
		}

		rl.mu.Unlock()
	}

	client.mu.Lock()

	defer client.mu.Unlock()

	windowEnd := client.windowStart.Add(rl.window)

	if client.count == 0 || !now.Before(windowEnd) {
		client.windowStart = now
		client.count = 1

		return ports.RateLimitResult{
			Allowed:    true,
			Limit:      rl.limit,
			Remaining:  rl.limit - 1,
			RetryAfter: rl.window,
		}, nil
	}

	if client.count < rl.limit {
		client.count++

		return ports.RateLimitResult{
			Allowed:    true,
			Limit:      rl.limit,
			Remaining:  rl.limit - client.count,
			RetryAfter: windowEnd.Sub(now),
		}, nil
	}

	rl.logger.Debug("rate limit exceeded",
		zap.String("identifier", identifier),
		zap.Int("limit", rl.limit))

	return ports.RateLimitResult{
		Allowed:    false,
		Limit:      rl.limit,
		Remaining:  0,
		RetryAfter: windowEnd.Sub(now),
	}, nil
}

// Reset clears the current window for an identifier.
func (rl *MemoryRateLimiter) Reset(ctx context.Context, identifier string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if client, exists := rl.clients[identifier]; exists {
		client.mu.Lock()
		client.count = 0
		client.mu.Unlock()
	}

	return nil
}

// cleanup periodically drops clients whose window has long expired,
// keeping the map from growing without bound.
func (rl *MemoryRateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()

		rl.mu.Lock()

		for identifier, client := range rl.clients {
			client.mu.Lock()

			if client.count == 0 || now.Sub(client.windowStart) > 2*rl.window {
				delete(rl.clients, identifier)
			}

			client.mu.Unlock()
		}

		rl.mu.Unlock()
	}
}
