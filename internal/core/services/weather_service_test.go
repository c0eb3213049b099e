// Package services contain unit tests for the weather service.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/domain"
	"github.com/climaops/weather-service/internal/core/ports"
)

// MockWeatherProvider is a mock implementation of the WeatherProvider interface.
type MockWeatherProvider struct {
	mock.Mock
}

// FetchCurrent mocks the provider FetchCurrent method.
//
// Parameters:
//   - ctx: Context for the request
//   - city: City display name
//
// Returns:
//   - *domain.Weather: Mocked weather data
//   - error: Mocked error if configured
func (m *MockWeatherProvider) FetchCurrent(ctx context.Context, city string) (*domain.Weather, error) {
	args := m.Called(ctx, city)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Weather), args.Error(1)
}

// Name returns a fixed provider name for log output.
func (m *MockWeatherProvider) Name() string {
	return "test-provider"
}

// MockCacheService is a mock implementation of the CacheService interface.
type MockCacheService struct {
	mock.Mock
}

// Get mocks the cache Get method.
func (m *MockCacheService) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

// Set mocks the cache Set method.
func (m *MockCacheService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// Delete mocks the cache Delete method.
func (m *MockCacheService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// Clear mocks the cache Clear method.
func (m *MockCacheService) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks the cache Close method.
func (m *MockCacheService) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockHistoryRepository is a mock implementation of the HistoryRepository interface.
type MockHistoryRepository struct {
	mock.Mock
}

// Record mocks the history Record method.
func (m *MockHistoryRepository) Record(ctx context.Context, query *domain.WeatherQuery) error {
	args := m.Called(ctx, query)
	return args.Error(0)
}

// GetHistory mocks the history GetHistory method.
func (m *MockHistoryRepository) GetHistory(ctx context.Context, city string, limit int) ([]domain.WeatherQuery, error) {
	args := m.Called(ctx, city, limit)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.WeatherQuery), args.Error(1)
}

// PruneToLimit mocks the history PruneToLimit method.
func (m *MockHistoryRepository) PruneToLimit(ctx context.Context, maxPerCity int) (int64, error) {
	args := m.Called(ctx, maxPerCity)
	return args.Get(0).(int64), args.Error(1)
}

// PruneOlderThan mocks the history PruneOlderThan method.
func (m *MockHistoryRepository) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	args := m.Called(ctx, age)
	return args.Get(0).(int64), args.Error(1)
}

// Stats mocks the history Stats method.
func (m *MockHistoryRepository) Stats(ctx context.Context) (*ports.HistoryStats, error) {
	args := m.Called(ctx)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*ports.HistoryStats), args.Error(1)
}

// Close mocks the history Close method.
func (m *MockHistoryRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testWeather() *domain.Weather {
	return &domain.Weather{
		City:        "London",
		Country:     "GB",
		Temperature: 18.5,
		Description: "Light Rain",
		Humidity:    81,
		Pressure:    1009,
		WindSpeed:   4.2,
		FetchedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// TestWeatherService_GetWeather_CacheMiss verifies that a miss falls through
// to the provider, populates the cache, and records an uncached lookup.
func TestWeatherService_GetWeather_CacheMiss(t *testing.T) {
	logger := zap.NewNop()
	mockProvider := new(MockWeatherProvider)
	mockCache := new(MockCacheService)
	mockHistory := new(MockHistoryRepository)
	service := NewWeatherService(mockProvider, mockCache, mockHistory, 10*time.Minute, logger)

	expected := testWeather()

	mockCache.On("Get", mock.Anything, "weather_cache:london").Return(nil, ports.ErrCacheMiss)
	mockProvider.On("FetchCurrent", mock.Anything, "London").Return(expected, nil)
	mockCache.On("Set", mock.Anything, "weather_cache:london", mock.Anything, 10*time.Minute).Return(nil)
	mockHistory.On("Record", mock.Anything, mock.MatchedBy(func(q *domain.WeatherQuery) bool {
		return q.City == "London" && q.IPAddress == "203.0.113.7" && !q.Cached
	})).Return(nil)

	weather, cached, err := service.GetWeather(context.Background(), "london", "203.0.113.7")

	assert.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, expected, weather)

	mockProvider.AssertExpectations(t)
	mockCache.AssertExpectations(t)
	mockHistory.AssertExpectations(t)
}

// TestWeatherService_GetWeather_CacheHit verifies that a hit skips the
// provider entirely and records a cached lookup with an identical payload.
func TestWeatherService_GetWeather_CacheHit(t *testing.T) {
	logger := zap.NewNop()
	mockProvider := new(MockWeatherProvider)
	mockCache := new(MockCacheService)
	mockHistory := new(MockHistoryRepository)
	service := NewWeatherService(mockProvider, mockCache, mockHistory, 10*time.Minute, logger)

	expected := testWeather()
	payload, err := json.Marshal(cachedWeather{
		City:        expected.City,
		Country:     expected.Country,
		Temperature: expected.Temperature,
		Description: expected.Description,
		Humidity:    expected.Humidity,
		Pressure:    expected.Pressure,
		WindSpeed:   expected.WindSpeed,
		FetchedAt:   expected.FetchedAt,
	})
	assert.NoError(t, err)

	mockCache.On("Get", mock.Anything, "weather_cache:london").Return(payload, nil)
	mockHistory.On("Record", mock.Anything, mock.MatchedBy(func(q *domain.WeatherQuery) bool {
		return q.City == "London" && q.Cached
	})).Return(nil)

	weather, cached, err := service.GetWeather(context.Background(), "  London ", "203.0.113.7")

	assert.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, expected, weather)

	mockProvider.AssertNotCalled(t, "FetchCurrent", mock.Anything, mock.Anything)
	mockCache.AssertExpectations(t)
	mockHistory.AssertExpectations(t)
}

// TestWeatherService_GetWeather_ProviderErrors verifies error mapping for
// failed fetches: domain errors pass through, anything else is wrapped as an
// upstream error, and nothing is cached or recorded.
func TestWeatherService_GetWeather_ProviderErrors(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name         string
		providerErr  error
		expectedCode string
	}{
		{
			name:         "city not found",
			providerErr:  domain.NewCityNotFoundError("Atlantis"),
			expectedCode: domain.ErrCodeCityNotFound,
		},
		{
			name:         "upstream failure",
			providerErr:  domain.NewUpstreamError("provider returned status 500", nil),
			expectedCode: domain.ErrCodeUpstream,
		},
		{
			name:         "upstream timeout",
			providerErr:  domain.NewUpstreamTimeoutError("request timed out", nil),
			expectedCode: domain.ErrCodeUpstreamTimeout,
		},
		{
			name:         "unexpected error is wrapped",
			providerErr:  errors.New("connection reset"),
			expectedCode: domain.ErrCodeUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockProvider := new(MockWeatherProvider)
			mockCache := new(MockCacheService)
			mockHistory := new(MockHistoryRepository)
			service := NewWeatherService(mockProvider, mockCache, mockHistory, 10*time.Minute, logger)

			mockCache.On("Get", mock.Anything, mock.Anything).Return(nil, ports.ErrCacheMiss)
			mockProvider.On("FetchCurrent", mock.Anything, "Atlantis").Return(nil, tt.providerErr)

			weather, cached, err := service.GetWeather(context.Background(), "Atlantis", "203.0.113.7")

			assert.Error(t, err)
			assert.Nil(t, weather)
			assert.False(t, cached)

			var weatherErr *domain.WeatherError
			assert.ErrorAs(t, err, &weatherErr)
			assert.Equal(t, tt.expectedCode, weatherErr.Code)

			mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			mockHistory.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
		})
	}
}

// TestWeatherService_GetWeather_ValidationError verifies that blank city
// names are rejected before any backend is touched.
func TestWeatherService_GetWeather_ValidationError(t *testing.T) {
	logger := zap.NewNop()
	mockProvider := new(MockWeatherProvider)
	mockCache := new(MockCacheService)
	mockHistory := new(MockHistoryRepository)
	service := NewWeatherService(mockProvider, mockCache, mockHistory, 10*time.Minute, logger)

	weather, cached, err := service.GetWeather(context.Background(), "   ", "203.0.113.7")

	assert.Error(t, err)
	assert.Nil(t, weather)
	assert.False(t, cached)

	var weatherErr *domain.WeatherError
	assert.ErrorAs(t, err, &weatherErr)
	assert.Equal(t, domain.ErrCodeValidation, weatherErr.Code)

	mockCache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	mockProvider.AssertNotCalled(t, "FetchCurrent", mock.Anything, mock.Anything)
}

// TestWeatherService_GetWeather_CacheFaultsDegrade verifies that cache
// failures never fail a lookup: read faults and corrupt entries degrade to
// a miss, and write faults are ignored.
func TestWeatherService_GetWeather_CacheFaultsDegrade(t *testing.T) {
	logger := zap.NewNop()
	expected := testWeather()

	t.Run("read fault treated as miss", func(t *testing.T) {
		mockProvider := new(MockWeatherProvider)
		mockCache := new(MockCacheService)
		mockHistory := new(MockHistoryRepository)
		service := NewWeatherService(mockProvider, mockCache, mockHistory, 10*time.Minute, logger)

		mockCache.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
		mockProvider.On("FetchCurrent", mock.Anything, "London").Return(expected, nil)
		mockCache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		mockHistory.On("Record", mock.Anything, mock.Anything).Return(nil)

		weather, cached, err := service.GetWeather(context.Background(), "London", "203.0.113.7")

		assert.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, expected, weather)
	})

	t.Run("corrupt entry dropped and refetched", func(t *testing.T) {
		mockProvider := new(MockWeatherProvider)
		mockCache := new(MockCacheService)
		mockHistory := new(MockHistoryRepository)
		service := NewWeatherService(mockProvider, mockCache, mockHistory, 10*time.Minute, logger)

		mockCache.On("Get", mock.Anything, "weather_cache:london").Return([]byte("{not json"), nil)
		mockCache.On("Delete", mock.Anything, "weather_cache:london").Return(nil)
		mockProvider.On("FetchCurrent", mock.Anything, "London").Return(expected, nil)
		mockCache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		mockHistory.On("Record", mock.Anything, mock.Anything).Return(nil)

		weather, cached, err := service.GetWeather(context.Background(), "London", "203.0.113.7")

		assert.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, expected, weather)
		mockCache.AssertCalled(t, "Delete", mock.Anything, "weather_cache:london")
	})

	t.Run("write fault ignored", func(t *testing.T) {
		mockProvider := new(MockWeatherProvider)
		mockCache := new(MockCacheService)
		mockHistory := new(MockHistoryRepository)
		service := NewWeatherService(mockProvider, mockCache, mockHistory, 10*time.Minute, logger)

		mockCache.On("Get", mock.Anything, mock.Anything).Return(nil, ports.ErrCacheMiss)
		mockProvider.On("FetchCurrent", mock.Anything, "London").Return(expected, nil)
		mockCache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("write failed"))
		mockHistory.On("Record", mock.Anything, mock.Anything).Return(nil)

		weather, cached, err := service.GetWeather(context.Background(), "London", "203.0.113.7")

		assert.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, expected, weather)
	})
}

// TestWeatherService_GetWeather_RecordFaultIgnored verifies that a history
// write failure does not fail the lookup.
func TestWeatherService_GetWeather_RecordFaultIgnored(t *testing.T) {
	logger := zap.NewNop()
	mockProvider := new(MockWeatherProvider)
	mockCache := new(MockCacheService)
	mockHistory := new(MockHistoryRepository)
	service := NewWeatherService(mockProvider, mockCache, mockHistory, 10*time.Minute, logger)

	expected := testWeather()

	mockCache.On("Get", mock.Anything, mock.Anything).Return(nil, ports.ErrCacheMiss)
	mockProvider.On("FetchCurrent", mock.Anything, "London").Return(expected, nil)
	mockCache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockHistory.On("Record", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	weather, cached, err := service.GetWeather(context.Background(), "London", "203.0.113.7")

	assert.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, expected, weather)
}

// TestWeatherService_GetHistory tests history reads including limit
// defaulting and storage error wrapping.
func TestWeatherService_GetHistory(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns recorded lookups", func(t *testing.T) {
		mockHistory := new(MockHistoryRepository)
		service := NewWeatherService(new(MockWeatherProvider), new(MockCacheService), mockHistory, time.Minute, logger)

		records := []domain.WeatherQuery{
			{ID: 2, City: "London", Cached: true},
			{ID: 1, City: "London", Cached: false},
		}

		mockHistory.On("GetHistory", mock.Anything, "London", 5).Return(records, nil)

		queries, err := service.GetHistory(context.Background(), "London", 5)

		assert.NoError(t, err)
		assert.Equal(t, records, queries)
	})

	t.Run("non-positive limit falls back to default", func(t *testing.T) {
		mockHistory := new(MockHistoryRepository)
		service := NewWeatherService(new(MockWeatherProvider), new(MockCacheService), mockHistory, time.Minute, logger)

		mockHistory.On("GetHistory", mock.Anything, "London", 10).Return([]domain.WeatherQuery{}, nil)

		_, err := service.GetHistory(context.Background(), "London", 0)

		assert.NoError(t, err)
		mockHistory.AssertCalled(t, "GetHistory", mock.Anything, "London", 10)
	})

	t.Run("storage failure maps to database error", func(t *testing.T) {
		mockHistory := new(MockHistoryRepository)
		service := NewWeatherService(new(MockWeatherProvider), new(MockCacheService), mockHistory, time.Minute, logger)

		mockHistory.On("GetHistory", mock.Anything, "London", 10).Return(nil, errors.New("connection lost"))

		queries, err := service.GetHistory(context.Background(), "London", 10)

		assert.Error(t, err)
		assert.Nil(t, queries)

		var weatherErr *domain.WeatherError
		assert.ErrorAs(t, err, &weatherErr)
		assert.Equal(t, domain.ErrCodeDatabase, weatherErr.Code)
	})

	t.Run("blank city rejected", func(t *testing.T) {
		service := NewWeatherService(new(MockWeatherProvider), new(MockCacheService), new(MockHistoryRepository), time.Minute, logger)

		queries, err := service.GetHistory(context.Background(), " ", 10)

		assert.Error(t, err)
		assert.Nil(t, queries)
	})
}

// TestWeatherService_InvalidateCache tests administrative cache invalidation.
func TestWeatherService_InvalidateCache(t *testing.T) {
	logger := zap.NewNop()

	t.Run("deletes the normalized key", func(t *testing.T) {
		mockCache := new(MockCacheService)
		service := NewWeatherService(new(MockWeatherProvider), mockCache, new(MockHistoryRepository), time.Minute, logger)

		mockCache.On("Delete", mock.Anything, "weather_cache:são paulo").Return(nil)

		err := service.InvalidateCache(context.Background(), "  São   Paulo ")

		assert.NoError(t, err)
		mockCache.AssertExpectations(t)
	})

	t.Run("backend failure maps to cache error", func(t *testing.T) {
		mockCache := new(MockCacheService)
		service := NewWeatherService(new(MockWeatherProvider), mockCache, new(MockHistoryRepository), time.Minute, logger)

		mockCache.On("Delete", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

		err := service.InvalidateCache(context.Background(), "London")

		assert.Error(t, err)

		var weatherErr *domain.WeatherError
		assert.ErrorAs(t, err, &weatherErr)
		assert.Equal(t, domain.ErrCodeCache, weatherErr.Code)
	})

	t.Run("blank city rejected", func(t *testing.T) {
		mockCache := new(MockCacheService)
		service := NewWeatherService(new(MockWeatherProvider), mockCache, new(MockHistoryRepository), time.Minute, logger)

		err := service.InvalidateCache(context.Background(), "")

		assert.Error(t, err)
		mockCache.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}
