package ports

import (
	"context"
	"errors"
	"time"

	"github.com/climaops/weather-service/internal/core/domain"
)

// ErrCacheMiss is returned by CacheService.Get when a key is absent or
// expired. Every cache backend maps its own not-found signal to this.
var ErrCacheMiss = errors.New("cache: key not found")

// WeatherService is the primary port exposed to transport adapters.
type WeatherService interface {
	// GetWeather returns current conditions for a city, recording the
	// lookup in history. The bool reports whether the cache served it.
	GetWeather(ctx context.Context, city, clientIP string) (*domain.Weather, bool, error)

	// GetHistory returns up to limit past lookups for a city, newest first.
	GetHistory(ctx context.Context, city string, limit int) ([]domain.WeatherQuery, error)

	// InvalidateCache drops the cached entry for a city. History is untouched.
	InvalidateCache(ctx context.Context, city string) error
}

// WeatherProvider is the secondary port for upstream weather sources.
type WeatherProvider interface {
	FetchCurrent(ctx context.Context, city string) (*domain.Weather, error)

	// Name identifies the provider in logs.
	Name() string
}

type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// RateLimitResult reports the outcome of one fixed-window check.
type RateLimitResult struct {
	Allowed bool

	// Limit is the configured maximum requests per window.
	Limit int

	// Remaining is how many requests are left in the current window.
	Remaining int

	// RetryAfter is the time until the current window expires.
	// Only meaningful when Allowed is false.
	RetryAfter time.Duration
}

// RateLimitService gates requests per client identifier using a fixed
// window. Allow performs an atomic check-and-increment: blocked requests
// never advance the counter.
type RateLimitService interface {
	Allow(ctx context.Context, identifier string) (RateLimitResult, error)
	Reset(ctx context.Context, identifier string) error
}

// HistoryRepository is the row store for past lookups.
type HistoryRepository interface {
	// Record appends one lookup. It never mutates existing rows.
	Record(ctx context.Context, query *domain.WeatherQuery) error

	// GetHistory returns up to limit rows for a city, newest first,
	// insertion order breaking timestamp ties.
	GetHistory(ctx context.Context, city string, limit int) ([]domain.WeatherQuery, error)

	// PruneToLimit keeps the maxPerCity newest rows per city and deletes
	// the rest, returning how many rows were deleted. Safe to run
	// concurrently with Record and idempotent between writes.
	PruneToLimit(ctx context.Context, maxPerCity int) (int64, error)

	// PruneOlderThan deletes rows created before the cutoff age.
	PruneOlderThan(ctx context.Context, age time.Duration) (int64, error)

	// Stats aggregates lookup counters across all cities.
	Stats(ctx context.Context) (*HistoryStats, error)

	Close() error
}

// HistoryStats summarizes the history store for the stats endpoint.
type HistoryStats struct {
	TotalQueries   int64
	CachedQueries  int64
	DistinctCities int64
	LastQueryAt    time.Time
}
