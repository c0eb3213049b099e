// Package openweather implements a client for the OpenWeatherMap current
// weather API. This package serves as a secondary adapter, translating
// domain requests into API calls and converting responses back to domain
// objects.
package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/domain"
)

// ProviderName identifies this adapter in logs and configuration.
const ProviderName = "openweathermap"

// Client implements the WeatherProvider interface against the
// OpenWeatherMap REST API. A single GET to /weather?q={city} returns the
// current conditions; metric units are requested so temperatures arrive
// in Celsius.
type Client struct {
	// baseURL is the API base endpoint, typically
	// https://api.openweathermap.org/data/2.5
	baseURL string

	// apiKey authenticates requests; passed as the appid query parameter
	apiKey string

	// httpClient handles HTTP communication with timeout configuration
	httpClient *http.Client

	// logger records API interactions and errors
	logger *zap.Logger
}

// NewClient creates an OpenWeatherMap API client.
//
// Parameters:
//   - baseURL: API base URL
//   - apiKey: OpenWeatherMap API key
//   - httpClient: HTTP client with timeout configuration
//   - logger: Zap logger for API interaction logging
//
// Returns:
//   - *Client: Configured OpenWeatherMap client
func NewClient(baseURL, apiKey string, httpClient *http.Client, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

// currentResponse represents the subset of the OpenWeatherMap current
// weather payload this service consumes.
type currentResponse struct {
	Name string `json:"name"`

	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`

	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
		Pressure int     `json:"pressure"`
	} `json:"main"`

	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`

	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Name identifies the provider in logs.
func (c *Client) Name() string {
	return ProviderName
}

// FetchCurrent retrieves current conditions for a city.
//
// Parameters:
//   - ctx: Context for cancellation (a 10s timeout is added if none set)
//   - city: City name as the client supplied it
//
// Returns:
//   - *domain.Weather: Current conditions with the provider's canonical
//     city name
//   - error: *domain.WeatherError classifying the failure: CITY_NOT_FOUND
//     on 404, UPSTREAM_TIMEOUT on timeout, UPSTREAM_ERROR otherwise
func (c *Client) FetchCurrent(ctx context.Context, city string) (*domain.Weather, error) {
	query := url.Values{}
	query.Set("q", city)
	query.Set("appid", c.apiKey)
	query.Set("units", "metric")

	requestURL := fmt.Sprintf("%s/weather?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)

	if err != nil {
		return nil, domain.NewUpstreamError("failed to build provider request", err)
	}

	req.Header.Set("User-Agent", "WeatherService/1.0")

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		req = req.WithContext(ctx)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("provider request timed out",
				zap.String("city", city),
				zap.Duration("duration", duration))

			return nil, domain.NewUpstreamTimeoutError("weather provider timed out", err)
		}

		c.logger.Error("provider request failed",
			zap.String("city", city),
			zap.Error(err))

		return nil, domain.NewUpstreamError("failed to reach weather provider", err)
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Error("failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to parsing
	case http.StatusNotFound:
		c.logger.Info("city not found at provider", zap.String("city", city))

		return nil, domain.NewCityNotFoundError(city)
	case http.StatusUnauthorized:
		c.logger.Error("provider rejected API key")

		return nil, domain.NewUpstreamError("weather provider rejected the API key", nil)
	default:
		c.logger.Error("provider returned unexpected status",
			zap.String("city", city),
			zap.Int("status", resp.StatusCode))

		return nil, domain.NewUpstreamError(
			fmt.Sprintf("weather provider returned status %d", resp.StatusCode), nil)
	}

	var current currentResponse

	if err := json.NewDecoder(resp.Body).Decode(&current); err != nil {
		return nil, domain.NewUpstreamError("failed to decode provider response", err)
	}

	weather, err := c.parseCurrent(&current)

	if err != nil {
		return nil, err
	}

	c.logger.Debug("weather fetched from provider",
		zap.String("city", weather.City),
		zap.Float64("temperature", weather.Temperature),
		zap.Duration("duration", duration))

	return weather, nil
}

// parseCurrent maps the provider payload to the domain aggregate,
// rejecting responses that are missing the fields this service needs.
func (c *Client) parseCurrent(current *currentResponse) (*domain.Weather, error) {
	if current.Name == "" || len(current.Weather) == 0 {
		return nil, domain.NewUpstreamError("provider response is missing required fields", nil)
	}

	return &domain.Weather{
		City:        current.Name,
		Country:     current.Sys.Country,
		Temperature: math.Round(current.Main.Temp*10) / 10,
		Description: domain.TitleCase(current.Weather[0].Description),
		Humidity:    current.Main.Humidity,
		Pressure:    current.Main.Pressure,
		WindSpeed:   current.Wind.Speed,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// isTimeout reports whether err represents an exceeded deadline, either
// from the context or from the HTTP transport.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }

	return errors.As(err, &netErr) && netErr.Timeout()
}
