// Package config provides centralized configuration management for the weather service.
// It loads configuration from environment variables (optionally seeded from a
// .env file) with sensible defaults, supporting different deployment
// environments (development, staging, production).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration settings for the weather service.
// It aggregates configuration for all service components including
// HTTP server, cache, database, external APIs, and observability tools.
type Config struct {
	Server        ServerConfig
	Redis         RedisConfig
	Cache         CacheConfig
	Database      DatabaseConfig
	History       HistoryConfig
	Observability ObservabilityConfig
	External      ExternalConfig
	RateLimit     RateLimitConfig
}

// ServerConfig contains HTTP server settings and timeouts.
// These settings control how the service handles incoming requests.
type ServerConfig struct {
	Port         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RedisConfig contains settings for the shared Redis connection used by
// both the weather cache and the rate limiter.
type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CacheConfig controls how long weather lookups stay cached.
type CacheConfig struct {
	// TTL is the lifetime of a cached weather entry.
	TTL time.Duration
	// CleanupInterval is how often the in-memory fallback cache evicts
	// expired entries. Ignored when Redis is in use.
	CleanupInterval time.Duration
}

// DatabaseConfig contains PostgreSQL database connection settings.
type DatabaseConfig struct {
	Enabled               bool
	Host                  string
	Port                  int
	User                  string
	Password              string
	Database              string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// HistoryConfig controls retention of recorded weather lookups.
type HistoryConfig struct {
	// RetentionPerCity is the number of most recent records kept per city.
	RetentionPerCity int
	// CleanupInterval is how often the retention sweep runs.
	CleanupInterval time.Duration
	// MaxAge is the absolute age limit for history records.
	MaxAge time.Duration
	// PurgeInterval is how often records older than MaxAge are purged.
	PurgeInterval time.Duration
	// DefaultPageSize is the history page size when the client does not
	// ask for one, and the fallback for out-of-range requests.
	DefaultPageSize int
	// MaxPageSize caps the history page size a client may request.
	MaxPageSize int
}

// ObservabilityConfig contains settings for distributed tracing and metrics.
type ObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	SampleRate     float64
	LogLevel       string
}

// ExternalConfig contains settings for the upstream weather provider.
// An empty APIKey switches the service to the built-in mock provider.
type ExternalConfig struct {
	APIKey      string
	BaseURL     string
	HTTPTimeout time.Duration
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	// Requests is the number of requests allowed per window per client.
	Requests int
	// Window is the length of the fixed rate limit window.
	Window time.Duration
	// ExemptPaths lists path prefixes that bypass rate limiting.
	ExemptPaths []string
}

// Load reads configuration from environment variables and returns a Config
// instance. A .env file in the working directory is loaded first when
// present; variables already set in the environment win.
//
// Returns:
//   - *Config: Configuration with values from environment or defaults
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", true),
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     10,
			MinIdleConns: 5,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Cache: CacheConfig{
			TTL:             time.Duration(getEnvAsInt("WEATHER_CACHE_TTL", 600)) * time.Second,
			CleanupInterval: 10 * time.Minute,
		},
		Database: DatabaseConfig{
			Enabled:               getEnvAsBool("DATABASE_ENABLED", false),
			Host:                  getEnv("DB_HOST", "localhost"),
			Port:                  getEnvAsInt("DB_PORT", 5432),
			User:                  getEnv("DB_USER", "weather"),
			Password:              getEnv("DB_PASSWORD", ""),
			Database:              getEnv("DB_NAME", "weather_service"),
			SSLMode:               getEnv("DB_SSLMODE", "disable"),
			MaxConnections:        25,
			MaxIdleConnections:    5,
			ConnectionMaxLifetime: 5 * time.Minute,
		},
		History: HistoryConfig{
			RetentionPerCity: getEnvAsInt("HISTORY_RETENTION_PER_CITY", 10),
			CleanupInterval:  getEnvAsDuration("HISTORY_CLEANUP_INTERVAL", time.Minute),
			MaxAge:           getEnvAsDuration("HISTORY_MAX_AGE", 720*time.Hour),
			PurgeInterval:    getEnvAsDuration("HISTORY_PURGE_INTERVAL", time.Hour),
			DefaultPageSize:  10,
			MaxPageSize:      50,
		},
		Observability: ObservabilityConfig{
			ServiceName:    getEnv("SERVICE_NAME", "weather-service"),
			ServiceVersion: getEnv("VERSION", "1.0.0"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:     getEnvAsFloat("OTEL_SAMPLE_RATE", 0.1),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
		},
		External: ExternalConfig{
			APIKey:      getEnv("OPENWEATHER_API_KEY", ""),
			BaseURL:     getEnv("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
			HTTPTimeout: getEnvAsDuration("OPENWEATHER_HTTP_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			Requests:    getEnvAsInt("RATE_LIMIT_REQUESTS", 5),
			Window:      time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW", 60)) * time.Second,
			ExemptPaths: getEnvAsSlice("RATE_LIMIT_EXEMPT_PATHS", []string{"/health", "/metrics"}),
		},
	}
}

// getEnv retrieves an environment variable value with a fallback default.
//
// Parameters:
//   - key: Environment variable name
//   - defaultValue: Value to use if variable is not set
//
// Returns:
//   - string: Environment value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer with a fallback default.
//
// Parameters:
//   - key: Environment variable name
//   - defaultValue: Value to use if variable is not set or invalid
//
// Returns:
//   - int: Parsed integer value or default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}

	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean with a fallback default.
//
// Parameters:
//   - key: Environment variable name
//   - defaultValue: Value to use if variable is not set or invalid
//
// Returns:
//   - bool: Parsed boolean value or default
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}

	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float with a fallback default.
//
// Parameters:
//   - key: Environment variable name
//   - defaultValue: Value to use if variable is not set or invalid
//
// Returns:
//   - float64: Parsed float value or default
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}

	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a time.Duration with
// a fallback default. Values use Go duration syntax, for example "90s" or "1h".
//
// Parameters:
//   - key: Environment variable name
//   - defaultValue: Value to use if variable is not set or invalid
//
// Returns:
//   - time.Duration: Parsed duration value or default
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}

	return defaultValue
}

// getEnvAsSlice retrieves a comma-separated environment variable as a string
// slice with a fallback default. Empty entries are dropped.
//
// Parameters:
//   - key: Environment variable name
//   - defaultValue: Value to use if variable is not set
//
// Returns:
//   - []string: Parsed values or default
func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var values []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}

	return values
}
