package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/domain"
	"github.com/climaops/weather-service/internal/core/ports"
)

// cachedWeather is the JSON shape stored under each cache key. Only
// successful fetches are stored, never errors.
type cachedWeather struct {
	City        string    `json:"city"`
	Country     string    `json:"country"`
	Temperature float64   `json:"temperature"`
	Description string    `json:"description"`
	Humidity    int       `json:"humidity"`
	Pressure    int       `json:"pressure"`
	WindSpeed   float64   `json:"wind_speed"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type weatherService struct {
	provider ports.WeatherProvider
	cache    ports.CacheService
	history  ports.HistoryRepository
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewWeatherService(
	provider ports.WeatherProvider,
	cache ports.CacheService,
	history ports.HistoryRepository,
	cacheTTL time.Duration,
	logger *zap.Logger,
) ports.WeatherService {
	return &weatherService{
		provider: provider,
		cache:    cache,
		history:  history,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// GetWeather serves a lookup cache-aside: the cache is consulted first,
// a miss falls through to the provider and populates the cache. Every
// answered lookup appends a history record carrying the cached flag.
func (s *weatherService) GetWeather(ctx context.Context, city, clientIP string) (*domain.Weather, bool, error) {
	if err := domain.ValidateCity(city); err != nil {
		s.logger.Debug("rejected weather lookup", zap.String("city", city), zap.Error(err))
		return nil, false, err
	}

	key := domain.CacheKey(city)

	if weather := s.lookupCache(ctx, key); weather != nil {
		s.recordLookup(ctx, weather, clientIP, true)

		return weather, true, nil
	}

	weather, err := s.provider.FetchCurrent(ctx, domain.DisplayCity(city))
	if err != nil {
		s.logger.Warn("weather fetch failed",
			zap.String("city", city),
			zap.String("provider", s.provider.Name()),
			zap.Error(err))

		var weatherErr *domain.WeatherError
		if errors.As(err, &weatherErr) {
			return nil, false, err
		}

		return nil, false, domain.NewUpstreamError("failed to fetch weather", err)
	}

	s.storeCache(ctx, key, weather)
	s.recordLookup(ctx, weather, clientIP, false)

	s.logger.Info("weather retrieved",
		zap.String("city", weather.City),
		zap.String("provider", s.provider.Name()),
		zap.Float64("temperature", weather.Temperature))

	return weather, false, nil
}

// GetHistory returns past lookups for a city, newest first.
func (s *weatherService) GetHistory(ctx context.Context, city string, limit int) ([]domain.WeatherQuery, error) {
	if err := domain.ValidateCity(city); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 10
	}

	queries, err := s.history.GetHistory(ctx, city, limit)
	if err != nil {
		s.logger.Error("history query failed",
			zap.String("city", city),
			zap.Error(err))

		return nil, &domain.WeatherError{
			Code:    domain.ErrCodeDatabase,
			Message: "failed to read lookup history",
			Cause:   err,
		}
	}

	return queries, nil
}

// InvalidateCache drops the cached entry for a city. History is untouched.
func (s *weatherService) InvalidateCache(ctx context.Context, city string) error {
	if err := domain.ValidateCity(city); err != nil {
		return err
	}

	key := domain.CacheKey(city)

	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Error("cache invalidation failed",
			zap.String("key", key),
			zap.Error(err))

		return &domain.WeatherError{
			Code:    domain.ErrCodeCache,
			Message: "failed to invalidate cache",
			Cause:   err,
		}
	}

	s.logger.Info("cache invalidated", zap.String("key", key))

	return nil
}

// lookupCache returns the cached weather for key, or nil on a miss. Store
// faults and undecodable entries degrade to a miss so the lookup can
// still be served by the provider.
func (s *weatherService) lookupCache(ctx context.Context, key string) *domain.Weather {
	data, err := s.cache.Get(ctx, key)

	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			s.logger.Warn("cache read failed, treating as miss",
				zap.String("key", key),
				zap.Error(err))
		}

		return nil
	}

	var cached cachedWeather

	if err := json.Unmarshal(data, &cached); err != nil {
		s.logger.Warn("discarding undecodable cache entry",
			zap.String("key", key),
			zap.Error(err))

		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to drop bad cache entry", zap.String("key", key), zap.Error(err))
		}

		return nil
	}

	return &domain.Weather{
		City:        cached.City,
		Country:     cached.Country,
		Temperature: cached.Temperature,
		Description: cached.Description,
		Humidity:    cached.Humidity,
		Pressure:    cached.Pressure,
		WindSpeed:   cached.WindSpeed,
		FetchedAt:   cached.FetchedAt,
	}
}

// storeCache writes a fetched payload under key. A store fault is logged
// and the request continues; the next lookup simply misses again.
func (s *weatherService) storeCache(ctx context.Context, key string, weather *domain.Weather) {
	data, err := json.Marshal(cachedWeather{
		City:        weather.City,
		Country:     weather.Country,
		Temperature: weather.Temperature,
		Description: weather.Description,
		Humidity:    weather.Humidity,
		Pressure:    weather.Pressure,
		WindSpeed:   weather.WindSpeed,
		FetchedAt:   weather.FetchedAt,
	})

	if err != nil {
		s.logger.Error("failed to encode cache payload", zap.String("key", key), zap.Error(err))
		return
	}

	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.Warn("cache write failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

// recordLookup appends a history row for an answered lookup. Recording
// failures are logged and never fail the lookup itself.
func (s *weatherService) recordLookup(ctx context.Context, weather *domain.Weather, clientIP string, cached bool) {
	query := &domain.WeatherQuery{
		City:        weather.City,
		IPAddress:   clientIP,
		Temperature: weather.Temperature,
		Description: weather.Description,
		Country:     weather.Country,
		Humidity:    weather.Humidity,
		Pressure:    weather.Pressure,
		WindSpeed:   weather.WindSpeed,
		Cached:      cached,
	}

	if err := s.history.Record(ctx, query); err != nil {
		s.logger.Warn("failed to record lookup history",
			zap.String("city", weather.City),
			zap.Bool("cached", cached),
			zap.Error(err))
	}
}
