// Package app provides application-level coordination and dependency injection.
// It orchestrates the initialization of all service components, manages their lifecycles,
// and provides a clean application structure following dependency inversion principles.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/climaops/weather-service/internal/adapters/primary/rest"
	"github.com/climaops/weather-service/internal/adapters/secondary/mockweather"
	"github.com/climaops/weather-service/internal/adapters/secondary/openweather"
	"github.com/climaops/weather-service/internal/config"
	"github.com/climaops/weather-service/internal/core/domain"
	"github.com/climaops/weather-service/internal/core/ports"
	"github.com/climaops/weather-service/internal/core/services"
	"github.com/climaops/weather-service/internal/infrastructure/cache"
	"github.com/climaops/weather-service/internal/infrastructure/circuitbreaker"
	"github.com/climaops/weather-service/internal/infrastructure/database"
	"github.com/climaops/weather-service/internal/infrastructure/ratelimit"
	"github.com/climaops/weather-service/internal/middleware"
	"github.com/climaops/weather-service/internal/observability"
	"github.com/climaops/weather-service/internal/scheduler"
)

// apiKeyPlaceholder is the sample value shipped in .env.example. Treating it
// like a missing key keeps a copied example file from hitting the real API.
const apiKeyPlaceholder = "your_openweathermap_api_key_here"

// Server represents the HTTP server instance.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// App manages the application lifecycle and dependencies.
type App struct {
	cfg         *config.Config
	server      *Server
	logger      *zap.Logger
	telemetry   *observability.Telemetry
	redisClient *redis.Client
	cacheSvc    ports.CacheService
	history     ports.HistoryRepository
	postgres    *database.PostgresHistory
	breakers    *circuitbreaker.Manager
	sched       *scheduler.Scheduler
}

// New creates a new application instance.
//
// Returns:
//   - *App: Configured application instance
//   - error: Logger initialization error
func New() (*App, error) {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// newLogger builds a zap logger matching the configured environment and level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Server.Environment == "development" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	if level, err := zapcore.ParseLevel(cfg.Observability.LogLevel); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zapCfg.Build()
}

// Start initializes and starts all application components.
//
// Parameters:
//   - ctx: Context for initialization
//
// Returns:
//   - error: Component initialization or server start error
func (a *App) Start(ctx context.Context) error {
	if err := a.initTelemetry(ctx); err != nil {
		a.logger.Warn("failed to initialize telemetry, continuing without it", zap.Error(err))
	}

	cacheService, rateLimitService := a.initRedisServices(ctx)
	a.cacheSvc = cacheService
	a.history = a.initHistory()

	provider := a.initWeatherProvider()

	weatherService := services.NewWeatherService(
		provider,
		cacheService,
		a.history,
		a.cfg.Cache.TTL,
		a.logger,
	)

	weatherHandler := rest.NewWeatherHandler(
		weatherService,
		rest.HistoryLimits{
			Default: a.cfg.History.DefaultPageSize,
			Max:     a.cfg.History.MaxPageSize,
		},
		a.logger,
	)

	var breakerStats rest.BreakerStats
	if a.breakers != nil {
		breakerStats = a.breakers
	}

	healthHandler := rest.NewHealthHandler(a.history, breakerStats, a.logger)
	a.registerHealthCheckers(healthHandler, cacheService)

	rateLimitMiddleware := middleware.NewRateLimitMiddleware(
		rateLimitService,
		a.cfg.RateLimit.Requests,
		a.cfg.RateLimit.Window,
		a.cfg.RateLimit.ExemptPaths,
		a.telemetry,
		a.logger,
	)

	if err := a.startScheduler(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	router := a.setupRouter(weatherHandler, healthHandler, rateLimitMiddleware)

	a.server = &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%s", a.cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  a.cfg.Server.ReadTimeout,
			WriteTimeout: a.cfg.Server.WriteTimeout,
			IdleTimeout:  a.cfg.Server.IdleTimeout,
		},
		logger: a.logger,
	}

	go func() {
		a.logger.Info("starting HTTP server",
			zap.String("port", a.cfg.Server.Port),
			zap.String("provider", provider.Name()))

		if err := a.server.server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				a.logger.Fatal("failed to start server", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down all application components.
func (a *App) Stop() {
	a.logger.Info("shutting down application...")

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := a.server.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown server gracefully", zap.Error(err))
		}
	}

	if a.sched != nil {
		a.sched.Stop()
	}

	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Error("failed to close history store", zap.Error(err))
		}
	}

	if a.cacheSvc != nil {
		if err := a.cacheSvc.Close(); err != nil {
			a.logger.Error("failed to close cache", zap.Error(err))
		}
	}

	if a.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.telemetry.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown telemetry", zap.Error(err))
		}
	}

	if err := a.logger.Sync(); err != nil {
		// Sync can fail on some platforms, ignore the error
		_ = err
	}
}

// WaitForShutdown blocks until the server receives a shutdown signal.
func (a *App) WaitForShutdown() {
	quit := make(chan os.Signal, 1)

	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	a.logger.Info("shutdown signal received")
}

// initTelemetry initializes OpenTelemetry providers.
//
// Parameters:
//   - ctx: Context for initialization
//
// Returns:
//   - error: Telemetry initialization error
func (a *App) initTelemetry(ctx context.Context) error {
	telemetryConfig := observability.Config{
		ServiceName:    a.cfg.Observability.ServiceName,
		ServiceVersion: a.cfg.Observability.ServiceVersion,
		Environment:    a.cfg.Observability.Environment,
		OTLPEndpoint:   a.cfg.Observability.OTLPEndpoint,
		SampleRate:     a.cfg.Observability.SampleRate,
	}

	var err error
	a.telemetry, err = observability.InitTelemetry(ctx, telemetryConfig, a.logger)

	return err
}

// initRedisServices initializes Redis-based or memory-based cache and rate
// limiting. Both share one Redis connection pool; when Redis is disabled or
// unreachable the service degrades to single-instance in-memory backends.
//
// Parameters:
//   - ctx: Context for Redis connection testing
//
// Returns:
//   - ports.CacheService: Cache implementation (Redis or memory)
//   - ports.RateLimitService: Rate limiter implementation (Redis or memory)
func (a *App) initRedisServices(ctx context.Context) (ports.CacheService, ports.RateLimitService) {
	if !a.cfg.Redis.Enabled {
		a.logger.Info("Redis disabled, using memory-based services")
		return a.memoryServices()
	}

	redisClient, err := cache.NewRedisClient(cache.Config{
		Addr:         a.cfg.Redis.Addr,
		Password:     a.cfg.Redis.Password,
		DB:           a.cfg.Redis.DB,
		PoolSize:     a.cfg.Redis.PoolSize,
		MinIdleConns: a.cfg.Redis.MinIdleConns,
		MaxRetries:   a.cfg.Redis.MaxRetries,
		DialTimeout:  a.cfg.Redis.DialTimeout,
		ReadTimeout:  a.cfg.Redis.ReadTimeout,
		WriteTimeout: a.cfg.Redis.WriteTimeout,
	})
	if err != nil {
		a.logger.Warn("Redis connection failed, falling back to memory-based services", zap.Error(err))
		return a.memoryServices()
	}

	a.logger.Info("Redis connected successfully", zap.String("addr", a.cfg.Redis.Addr))
	a.redisClient = redisClient

	cacheService := cache.NewRedisCache(redisClient, a.telemetry, a.logger)
	rateLimitService := ratelimit.NewRedisRateLimiter(
		redisClient,
		a.cfg.RateLimit.Requests,
		a.cfg.RateLimit.Window,
		a.logger,
	)

	return cacheService, rateLimitService
}

func (a *App) memoryServices() (ports.CacheService, ports.RateLimitService) {
	memCache := cache.NewMemoryCache(a.cfg.Cache.TTL, a.cfg.Cache.CleanupInterval, a.telemetry, a.logger)
	memRateLimit := ratelimit.NewMemoryRateLimiter(a.cfg.RateLimit.Requests, a.cfg.RateLimit.Window, a.logger)

	return memCache, memRateLimit
}

// initHistory initializes the lookup history store. PostgreSQL is used when
// enabled and reachable; otherwise history is kept in memory so the API
// keeps working with reduced durability.
//
// Returns:
//   - ports.HistoryRepository: History store implementation
func (a *App) initHistory() ports.HistoryRepository {
	if a.cfg.Database.Enabled {
		repo, err := database.NewPostgresHistory(database.Config{
			Host:                  a.cfg.Database.Host,
			Port:                  a.cfg.Database.Port,
			User:                  a.cfg.Database.User,
			Password:              a.cfg.Database.Password,
			Database:              a.cfg.Database.Database,
			SSLMode:               a.cfg.Database.SSLMode,
			MaxConnections:        a.cfg.Database.MaxConnections,
			MaxIdleConnections:    a.cfg.Database.MaxIdleConnections,
			ConnectionMaxLifetime: a.cfg.Database.ConnectionMaxLifetime,
		}, a.telemetry, a.logger)
		if err == nil {
			a.postgres = repo
			return repo
		}

		a.logger.Warn("failed to connect to database, using in-memory history", zap.Error(err))
	}

	return database.NewMemoryHistory(a.logger)
}

// initWeatherProvider selects the upstream weather provider. Without an API
// key the built-in mock provider is used, which makes local development and
// CI work without external credentials. The real provider is wrapped in a
// circuit breaker.
//
// Returns:
//   - ports.WeatherProvider: Configured provider
func (a *App) initWeatherProvider() ports.WeatherProvider {
	apiKey := a.cfg.External.APIKey
	if apiKey == "" || apiKey == apiKeyPlaceholder {
		a.logger.Warn("no weather provider API key configured, using mock provider")
		return mockweather.NewProvider(a.logger)
	}

	httpClient := &http.Client{
		Timeout: a.cfg.External.HTTPTimeout,
	}

	client := openweather.NewClient(a.cfg.External.BaseURL, apiKey, httpClient, a.logger)

	a.breakers = circuitbreaker.NewManager(a.logger)
	breaker := a.breakers.GetBreaker(openweather.ProviderName, circuitbreaker.Config{
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		// A city the provider does not know is a normal answer, not an
		// upstream fault. Only infrastructure failures may trip the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}

			var e *domain.WeatherError
			return errors.As(err, &e) && e.Code == domain.ErrCodeCityNotFound
		},
	})

	return newBreakerProvider(client, breaker, a.logger)
}

// registerHealthCheckers wires readiness probes for the backends in use.
func (a *App) registerHealthCheckers(handler *rest.HealthHandler, cacheService ports.CacheService) {
	if a.postgres != nil {
		handler.RegisterChecker("database", a.postgres.Ping)
	}

	if a.redisClient != nil {
		handler.RegisterChecker("redis", func(ctx context.Context) error {
			return a.redisClient.Ping(ctx).Err()
		})
	}

	handler.RegisterChecker("cache", func(ctx context.Context) error {
		if err := cacheService.Set(ctx, "health_check", []byte("ok"), 10*time.Second); err != nil {
			return err
		}

		_, err := cacheService.Get(ctx, "health_check")
		return err
	})
}

// startScheduler registers and starts the background maintenance tasks:
// the per-city retention sweep and the absolute age purge.
func (a *App) startScheduler() error {
	a.sched = scheduler.New(a.logger)

	history := a.history
	retention := a.cfg.History.RetentionPerCity

	a.sched.Register(scheduler.Task{
		Name:     "history-retention",
		Interval: a.cfg.History.CleanupInterval,
		Run: func(ctx context.Context) error {
			deleted, err := history.PruneToLimit(ctx, retention)
			if deleted > 0 {
				a.logger.Info("pruned history rows over retention cap",
					zap.Int64("deleted", deleted))
			}

			return err
		},
	})

	maxAge := a.cfg.History.MaxAge
	a.sched.Register(scheduler.Task{
		Name:     "history-age-purge",
		Interval: a.cfg.History.PurgeInterval,
		Run: func(ctx context.Context) error {
			deleted, err := history.PruneOlderThan(ctx, maxAge)
			if deleted > 0 {
				a.logger.Info("purged history rows past maximum age",
					zap.Int64("deleted", deleted))
			}

			return err
		},
	})

	return a.sched.Start()
}

// setupRouter creates and configures the HTTP router with all middleware.
//
// Parameters:
//   - weatherHandler: Handler for weather endpoints
//   - healthHandler: Handler for health, stats and metadata endpoints
//   - rateLimitMiddleware: Rate-limiting middleware instance
//
// Returns:
//   - http.Handler: Configured router with all routes and middleware
func (a *App) setupRouter(
	weatherHandler *rest.WeatherHandler,
	healthHandler *rest.HealthHandler,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", healthHandler.Home).Methods("GET")
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/liveness", healthHandler.Liveness).Methods("GET")
	router.HandleFunc("/health/readiness", healthHandler.Readiness).Methods("GET")
	router.HandleFunc("/version", healthHandler.Version).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Apply observability middleware if telemetry is available
	if a.telemetry != nil {
		obsMiddleware := middleware.NewObservabilityMiddleware(a.telemetry, a.logger)
		router.Use(obsMiddleware.TracingMiddleware)
		router.Use(obsMiddleware.MetricsMiddleware)
	}

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Apply rate limiting to API routes
	if rateLimitMiddleware != nil {
		api.Use(rateLimitMiddleware.Middleware)
	}

	// Weather endpoints
	api.HandleFunc("/weather", weatherHandler.GetWeather).Methods("GET")
	api.HandleFunc("/weather/history", weatherHandler.GetHistory).Methods("GET")
	api.HandleFunc("/weather/cache", weatherHandler.InvalidateCache).Methods("DELETE")
	api.HandleFunc("/stats", healthHandler.Stats).Methods("GET")

	return router
}
