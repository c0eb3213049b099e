// Package mockweather provides a deterministic in-process weather provider.
// It is selected automatically when no API key is configured, keeping the
// full request path exercisable in development and tests without an
// external account.
package mockweather

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/domain"
)

// ProviderName identifies this adapter in logs and configuration.
const ProviderName = "mock"

// Provider returns fixed weather data for any city. Two magic names
// simulate failure modes: "error" and "fail" produce an upstream error,
// "notfound" produces an unknown-city error.
type Provider struct {
	logger *zap.Logger
}

func NewProvider(logger *zap.Logger) *Provider {
	return &Provider{logger: logger}
}

// Name identifies the provider in logs.
func (p *Provider) Name() string {
	return ProviderName
}

// FetchCurrent returns a canned 25.0°C payload for the requested city.
func (p *Provider) FetchCurrent(ctx context.Context, city string) (*domain.Weather, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.logger.Debug("returning mock weather data", zap.String("city", city))

	switch domain.NormalizeCity(city) {
	case "error", "fail":
		return nil, domain.NewUpstreamError("mock upstream failure", nil)
	case "notfound":
		return nil, domain.NewCityNotFoundError(city)
	}

	return &domain.Weather{
		City:        domain.DisplayCity(city),
		Country:     "BR",
		Temperature: 25.0,
		Description: "Sunny",
		Humidity:    60,
		Pressure:    1013,
		WindSpeed:   5.5,
		FetchedAt:   time.Now().UTC(),
	}, nil
}
