package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestLoad_Defaults verifies the defaults used when no environment is set.
func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ENVIRONMENT", "REDIS_ENABLED", "WEATHER_CACHE_TTL",
		"DATABASE_ENABLED", "HISTORY_RETENTION_PER_CITY", "HISTORY_MAX_AGE",
		"OPENWEATHER_API_KEY", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW",
		"RATE_LIMIT_EXEMPT_PATHS", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 600*time.Second, cfg.Cache.TTL)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 10, cfg.History.RetentionPerCity)
	assert.Equal(t, 720*time.Hour, cfg.History.MaxAge)
	assert.Equal(t, 10, cfg.History.DefaultPageSize)
	assert.Equal(t, 50, cfg.History.MaxPageSize)
	assert.Empty(t, cfg.External.APIKey)
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, []string{"/health", "/metrics"}, cfg.RateLimit.ExemptPaths)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
}

// TestLoad_Overrides verifies that environment variables take effect.
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WEATHER_CACHE_TTL", "120")
	t.Setenv("RATE_LIMIT_REQUESTS", "20")
	t.Setenv("RATE_LIMIT_WINDOW", "30")
	t.Setenv("RATE_LIMIT_EXEMPT_PATHS", "/health, /metrics, /version")
	t.Setenv("HISTORY_RETENTION_PER_CITY", "25")
	t.Setenv("HISTORY_CLEANUP_INTERVAL", "90s")
	t.Setenv("DATABASE_ENABLED", "true")
	t.Setenv("OPENWEATHER_API_KEY", "real-key")
	t.Setenv("OTEL_SAMPLE_RATE", "0.5")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 20, cfg.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, []string{"/health", "/metrics", "/version"}, cfg.RateLimit.ExemptPaths)
	assert.Equal(t, 25, cfg.History.RetentionPerCity)
	assert.Equal(t, 90*time.Second, cfg.History.CleanupInterval)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "real-key", cfg.External.APIKey)
	assert.Equal(t, 0.5, cfg.Observability.SampleRate)
}

// TestEnvHelpers verifies fallback behavior for malformed values.
func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	assert.Equal(t, 42, getEnvAsInt("TEST_INT", 42))

	t.Setenv("TEST_INT", "7")
	assert.Equal(t, 7, getEnvAsInt("TEST_INT", 42))

	t.Setenv("TEST_BOOL", "not-a-bool")
	assert.True(t, getEnvAsBool("TEST_BOOL", true))

	t.Setenv("TEST_BOOL", "false")
	assert.False(t, getEnvAsBool("TEST_BOOL", true))

	t.Setenv("TEST_FLOAT", "nope")
	assert.Equal(t, 0.1, getEnvAsFloat("TEST_FLOAT", 0.1))

	t.Setenv("TEST_DURATION", "90x")
	assert.Equal(t, time.Minute, getEnvAsDuration("TEST_DURATION", time.Minute))

	t.Setenv("TEST_DURATION", "2h")
	assert.Equal(t, 2*time.Hour, getEnvAsDuration("TEST_DURATION", time.Minute))

	t.Setenv("TEST_SLICE", " , ,")
	assert.Equal(t, []string{"fallback"}, getEnvAsSlice("TEST_SLICE", []string{"fallback"}))
}
