package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/domain"
	"github.com/climaops/weather-service/internal/core/ports"
)

// MemoryHistory keeps lookup history in process memory, keyed by the
// normalized city name. It honors the same ordering and retention
// contracts as PostgresHistory but is lost on restart.
type MemoryHistory struct {
	mu      sync.RWMutex
	records map[string][]domain.WeatherQuery
	nextID  int64
	logger  *zap.Logger
}

func NewMemoryHistory(logger *zap.Logger) *MemoryHistory {
	return &MemoryHistory{
		records: make(map[string][]domain.WeatherQuery),
		nextID:  1,
		logger:  logger,
	}
}

// Record appends one lookup row, assigning id and, when unset, created_at.
func (m *MemoryHistory) Record(ctx context.Context, query *domain.WeatherQuery) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	query.ID = m.nextID
	m.nextID++

	if query.CreatedAt.IsZero() {
		query.CreatedAt = time.Now()
	}

	key := domain.NormalizeCity(query.City)
	m.records[key] = append(m.records[key], *query)

	return nil
}

// GetHistory returns up to limit rows for a city, newest first.
func (m *MemoryHistory) GetHistory(ctx context.Context, city string, limit int) ([]domain.WeatherQuery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.records[domain.NormalizeCity(city)]

	queries := make([]domain.WeatherQuery, len(stored))
	copy(queries, stored)

	sortNewestFirst(queries)

	if len(queries) > limit {
		queries = queries[:limit]
	}

	return queries, nil
}

// PruneToLimit keeps the maxPerCity newest rows per city.
func (m *MemoryHistory) PruneToLimit(ctx context.Context, maxPerCity int) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64

	for key, stored := range m.records {
		if len(stored) <= maxPerCity {
			continue
		}

		sortNewestFirst(stored)

		deleted += int64(len(stored) - maxPerCity)
		m.records[key] = stored[:maxPerCity]

		m.logger.Debug("pruned city history",
			zap.String("city", key),
			zap.Int("deleted", len(stored)-maxPerCity),
		)
	}

	return deleted, nil
}

// PruneOlderThan deletes rows created before now minus age.
func (m *MemoryHistory) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-age)

	var deleted int64

	for key, stored := range m.records {
		kept := stored[:0]

		for _, q := range stored {
			if q.CreatedAt.Before(cutoff) {
				deleted++
				continue
			}

			kept = append(kept, q)
		}

		if len(kept) == 0 {
			delete(m.records, key)
			continue
		}

		m.records[key] = kept
	}

	return deleted, nil
}

// Stats aggregates lookup counters across all cities.
func (m *MemoryHistory) Stats(ctx context.Context) (*ports.HistoryStats, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &ports.HistoryStats{
		DistinctCities: int64(len(m.records)),
	}

	for _, stored := range m.records {
		for _, q := range stored {
			stats.TotalQueries++

			if q.Cached {
				stats.CachedQueries++
			}

			if q.CreatedAt.After(stats.LastQueryAt) {
				stats.LastQueryAt = q.CreatedAt
			}
		}
	}

	return stats, nil
}

// Close is a no-op; the in-memory store holds no external resources.
func (m *MemoryHistory) Close() error {
	return nil
}

func sortNewestFirst(queries []domain.WeatherQuery) {
	sort.SliceStable(queries, func(i, j int) bool {
		if queries[i].CreatedAt.Equal(queries[j].CreatedAt) {
			return queries[i].ID > queries[j].ID
		}

		return queries[i].CreatedAt.After(queries[j].CreatedAt)
	})
}
