// Package app provides application initialization and dependency injection.
package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/domain"
	"github.com/climaops/weather-service/internal/core/ports"
	"github.com/climaops/weather-service/internal/infrastructure/circuitbreaker"
)

// breakerProvider wraps a weather provider with circuit breaker protection
// to provide fault tolerance for external API calls. While the breaker is
// open, fetches fail fast with an upstream timeout error instead of waiting
// on a provider that is known to be down.
type breakerProvider struct {
	provider ports.WeatherProvider
	cb       *circuitbreaker.Breaker
	logger   *zap.Logger
}

func newBreakerProvider(provider ports.WeatherProvider, cb *circuitbreaker.Breaker, logger *zap.Logger) ports.WeatherProvider {
	return &breakerProvider{
		provider: provider,
		cb:       cb,
		logger:   logger,
	}
}

// FetchCurrent retrieves current weather with circuit breaker protection.
func (p *breakerProvider) FetchCurrent(ctx context.Context, city string) (*domain.Weather, error) {
	var result *domain.Weather

	err := p.cb.Execute(ctx, "fetch-current", func() error {
		var err error
		result, err = p.provider.FetchCurrent(ctx, city)

		return err
	})
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			p.logger.Warn("weather provider circuit open, failing fast",
				zap.String("city", city))

			return nil, domain.NewUpstreamTimeoutError("weather provider circuit is open", err)
		}

		return nil, err
	}

	return result, nil
}

// Name returns the wrapped provider's name.
func (p *breakerProvider) Name() string {
	return p.provider.Name()
}
