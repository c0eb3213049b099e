// Package ratelimit provides fixed-window rate limiting keyed by client
// identifier. The Redis implementation shares one window across service
// instances; an in-memory implementation serves as a fallback.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/ports"
)

// keyPrefix namespaces rate-limit counters in the shared Redis database.
const keyPrefix = "ratelimit:"

// fixedWindowScript performs the whole check-and-increment atomically.
// A missing key starts a new window at count 1. A key under the limit is
// incremented. A key at the limit is left untouched so blocked requests
// never extend or inflate the window. The reply is
// {allowed, remaining, seconds until the window expires}.
const fixedWindowScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = tonumber(redis.call('GET', key))

if current == nil then
    redis.call('SET', key, 1, 'EX', window)
    return {1, limit - 1, window}
end

if current < limit then
    local count = redis.call('INCR', key)
    local ttl = redis.call('TTL', key)
    if ttl < 0 then
        redis.call('EXPIRE', key, window)
        ttl = window
    end
    return {1, limit - count, ttl}
end

local ttl = redis.call('TTL', key)
if ttl < 0 then
    ttl = window
end
return {0, 0, ttl}
`

// RedisRateLimiter implements distributed fixed-window rate limiting.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *zap.Logger
}

// NewRedisRateLimiter creates a Redis-backed fixed-window limiter.
//
// Parameters:
//   - client: Redis client for the shared counter state
//   - limit: Maximum requests allowed per window
//   - window: Window length
//   - logger: Zap logger for rate limiting events
//
// Returns:
//   - ports.RateLimitService: Redis rate limiter implementation
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration, logger *zap.Logger) ports.RateLimitService {
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Allow checks whether the identifier may make another request in its
// current window, consuming one slot when it may.
//
// Returns:
//   - ports.RateLimitResult: Outcome with remaining quota and retry hint
//   - error: Redis error if the check could not run
func (r *RedisRateLimiter) Allow(ctx context.Context, identifier string) (ports.RateLimitResult, error) {
	tracer := otel.Tracer("ratelimit")
	ctx, span := tracer.Start(ctx, "RateLimit.Allow")

	defer span.End()

	span.SetAttributes(
		attribute.String("ratelimit.identifier", identifier),
		attribute.Int("ratelimit.limit", r.limit),
		attribute.String("ratelimit.window", r.window.String()),
	)

	key := keyPrefix + identifier
	windowSecs := int(r.window.Seconds())

	result, err := r.client.Eval(ctx, fixedWindowScript, []string{key}, r.limit, windowSecs).Result()

	if err != nil {
		span.RecordError(err)

		r.logger.Error("rate limit eval error",
			zap.String("identifier", identifier),
			zap.Error(err))

		return ports.RateLimitResult{}, err
	}

	reply, ok := result.([]interface{})

	if !ok || len(reply) != 3 {
		err := fmt.Errorf("unexpected rate limit script reply: %v", result)
		span.RecordError(err)

		return ports.RateLimitResult{}, err
	}

	outcome := ports.RateLimitResult{
		Allowed:    reply[0].(int64) == 1,
		Limit:      r.limit,
		Remaining:  int(reply[1].(int64)),
		RetryAfter: time.Duration(reply[2].(int64)) * time.Second,
	}

	span.SetAttributes(attribute.Bool("ratelimit.allowed", outcome.Allowed))

	if !outcome.Allowed {
		r.logger.Debug("rate limit exceeded",
			zap.String("identifier", identifier),
			zap.Int("limit", r.limit),
			zap.Duration("retry_after", outcome.RetryAfter))
	}

	return outcome, nil
}

// Reset clears the current window for an identifier.
//
// Parameters:
//   - ctx: Context for cancellation and tracing
//   - identifier: Client identifier to reset
//
// Returns:
//   - error: Redis deletion error if operation fails
func (r *RedisRateLimiter) Reset(ctx context.Context, identifier string) error {
	tracer := otel.Tracer("ratelimit")
	ctx, span := tracer.Start(ctx, "RateLimit.Reset")

	defer span.End()

	span.SetAttributes(attribute.String("ratelimit.identifier", identifier))

	key := keyPrefix + identifier
	err := r.client.Del(ctx, key).Err()

	if err != nil {
		span.RecordError(err)

		r.logger.Error("rate limit reset error",
			zap.String("identifier", identifier),
			zap.Error(err))

		return err
	}

	r.logger.Debug("rate limit reset", zap.String("identifier", identifier))
	return nil
}
