package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/ports"
	"github.com/climaops/weather-service/internal/observability"
)

// MemoryCache is the in-process fallback cache, used when Redis is
// unreachable at startup. Entries expire on the same TTL contract as the
// Redis backend but are lost on restart and not shared across instances.
type MemoryCache struct {
	cache     *gocache.Cache
	telemetry *observability.Telemetry
	logger    *zap.Logger
}

// NewMemoryCache creates an in-memory cache.
//
// Parameters:
//   - defaultTTL: Default time-to-live for cached items
//   - cleanupInterval: How often expired items are evicted
//   - telemetry: Telemetry for hit/miss counters, may be nil
//   - logger: Zap logger for cache operations
//
// Returns:
//   - ports.CacheService: In-memory cache implementation
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration, telemetry *observability.Telemetry, logger *zap.Logger) ports.CacheService {
	return &MemoryCache{
		cache:     gocache.New(defaultTTL, cleanupInterval),
		telemetry: telemetry,
		logger:    logger,
	}
}

// Get retrieves a value by key, returning ErrCacheMiss when absent or expired.
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	tracer := otel.Tracer("cache")
	_, span := tracer.Start(ctx, "MemoryCache.Get")

	defer span.End()

	span.SetAttributes(attribute.String("cache.key", key))

	if value, found := m.cache.Get(key); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		m.telemetry.RecordCacheHit(ctx, key)
		m.logger.Debug("memory cache hit", zap.String("key", key))

		return value.([]byte), nil
	}

	span.SetAttributes(attribute.Bool("cache.hit", false))
	m.telemetry.RecordCacheMiss(ctx, key)
	m.logger.Debug("memory cache miss", zap.String("key", key))

	return nil, ErrCacheMiss
}

// Set stores a value under key for the given TTL.
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	tracer := otel.Tracer("cache")
	_, span := tracer.Start(ctx, "MemoryCache.Set")

	defer span.End()

	span.SetAttributes(
		attribute.String("cache.key", key),
		attribute.Int("cache.value_size", len(value)),
		attribute.String("cache.ttl", ttl.String()),
	)

	m.cache.Set(key, value, ttl)
	m.logger.Debug("memory cache set", zap.String("key", key))

	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	tracer := otel.Tracer("cache")
	_, span := tracer.Start(ctx, "MemoryCache.Delete")

	defer span.End()

	span.SetAttributes(attribute.String("cache.key", key))
	m.cache.Delete(key)
	m.logger.Debug("memory cache delete", zap.String("key", key))

	return nil
}

// Clear removes every entry.
func (m *MemoryCache) Clear(ctx context.Context) error {
	tracer := otel.Tracer("cache")
	_, span := tracer.Start(ctx, "MemoryCache.Clear")

	defer span.End()

	m.cache.Flush()
	m.logger.Info("memory cache cleared")

	return nil
}

// Close is a no-op; the in-memory store holds no external resources.
func (m *MemoryCache) Close() error {
	return nil
}
