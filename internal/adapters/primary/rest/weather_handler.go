// Package rest implements HTTP handlers for weather service endpoints.
// This package serves as the primary adapter, translating HTTP requests
// into domain operations and formatting responses for clients.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/domain"
	"github.com/climaops/weather-service/internal/core/ports"
	"github.com/climaops/weather-service/internal/middleware"
)

var validate = validator.New()

// HistoryLimits bounds the page size of history requests.
type HistoryLimits struct {
	// Default is used when the client does not pass a limit, or passes
	// one outside [1, Max].
	Default int
	// Max is the largest page size a client may request.
	Max int
}

// WeatherHandler handles HTTP requests for weather-related operations.
// It acts as the primary adapter between HTTP transport and business logic,
// managing request parsing, validation, and response formatting.
type WeatherHandler struct {
	// service provides access to weather business operations
	service ports.WeatherService

	// history bounds the page size of history requests
	history HistoryLimits

	// logger records request processing events and errors
	logger *zap.Logger
}

// NewWeatherHandler creates a new HTTP handler for weather operations.
//
// Parameters:
//   - service: WeatherService interface for business logic operations
//   - history: Page size bounds for the history endpoint
//   - logger: Zap logger for request logging and error tracking
//
// Returns:
//   - *WeatherHandler: Configured handler instance
func NewWeatherHandler(service ports.WeatherService, history HistoryLimits, logger *zap.Logger) *WeatherHandler {
	if history.Default <= 0 {
		history.Default = 10
	}
	if history.Max <= 0 {
		history.Max = 50
	}

	return &WeatherHandler{
		service: service,
		history: history,
		logger:  logger,
	}
}

// WeatherResponse represents the JSON structure returned by the weather
// lookup endpoint. This DTO maps domain objects to a client-friendly format
// with consistent field naming.
type WeatherResponse struct {
	City        string    `json:"city"`
	Country     string    `json:"country"`
	Temperature float64   `json:"temperature"`
	Description string    `json:"description"`
	Humidity    int       `json:"humidity"`
	Pressure    int       `json:"pressure"`
	WindSpeed   float64   `json:"wind_speed"`
	Cached      bool      `json:"cached"`
	Timestamp   time.Time `json:"timestamp"`
}

// HistoryEntry represents one recorded lookup in a history response.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	Description string    `json:"description"`
	Humidity    int       `json:"humidity"`
	Pressure    int       `json:"pressure"`
	WindSpeed   float64   `json:"wind_speed"`
	Country     string    `json:"country"`
	Cached      bool      `json:"cached"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryResponse wraps the history entries for a city.
type HistoryResponse struct {
	City    string         `json:"city"`
	Queries []HistoryEntry `json:"queries"`
	Total   int            `json:"total"`
}

// ErrorResponse represents a standardized error response structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// cityParams carries the query parameters shared by all weather endpoints.
type cityParams struct {
	City string `validate:"required,max=100"`
}

// GetWeather handles GET requests for current weather information.
//
// Parameters:
//   - w: HTTP response writer
//   - r: HTTP request containing the 'city' query parameter
//
// Response codes:
//   - 200: Success with WeatherResponse JSON
//   - 400: Missing or invalid city parameter (VALIDATION_ERROR)
//   - 404: City unknown to the provider (CITY_NOT_FOUND)
//   - 429: Rate limit exceeded (RATE_LIMITED)
//   - 502: Provider failure (UPSTREAM_ERROR)
//   - 503: Provider timeout or open circuit (UPSTREAM_TIMEOUT)
//   - 500: Internal server error
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city, err := h.cityParam(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	weather, cached, err := h.service.GetWeather(r.Context(), city, middleware.GetClientIP(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	response := WeatherResponse{
		City:        weather.City,
		Country:     weather.Country,
		Temperature: weather.Temperature,
		Description: weather.Description,
		Humidity:    weather.Humidity,
		Pressure:    weather.Pressure,
		WindSpeed:   weather.WindSpeed,
		Cached:      cached,
		Timestamp:   weather.FetchedAt.UTC(),
	}

	h.respondWithJSON(w, http.StatusOK, response)
}

// GetHistory handles GET requests for the recorded lookups of a city.
//
// Parameters:
//   - w: HTTP response writer
//   - r: HTTP request containing 'city' and optional 'limit' query parameters
//
// Response codes:
//   - 200: Success with HistoryResponse JSON, newest entries first
//   - 400: Missing or invalid city parameter (VALIDATION_ERROR)
//   - 500: Storage failure (DATABASE_ERROR)
func (h *WeatherHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	city, err := h.cityParam(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	limit := h.historyLimit(r.URL.Query().Get("limit"))

	queries, err := h.service.GetHistory(r.Context(), city, limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	entries := make([]HistoryEntry, 0, len(queries))
	for _, q := range queries {
		entries = append(entries, HistoryEntry{
			ID:          q.ID,
			City:        q.City,
			Temperature: q.Temperature,
			Description: q.Description,
			Humidity:    q.Humidity,
			Pressure:    q.Pressure,
			WindSpeed:   q.WindSpeed,
			Country:     q.Country,
			Cached:      q.Cached,
			CreatedAt:   q.CreatedAt,
		})
	}

	response := HistoryResponse{
		City:    domain.DisplayCity(city),
		Queries: entries,
		Total:   len(entries),
	}

	h.respondWithJSON(w, http.StatusOK, response)
}

// InvalidateCache handles DELETE requests that drop the cached weather
// entry for a city. Intended for administrative use.
//
// Parameters:
//   - w: HTTP response writer
//   - r: HTTP request containing the 'city' query parameter
//
// Response codes:
//   - 204: Cache entry removed (or was not present)
//   - 400: Missing or invalid city parameter (VALIDATION_ERROR)
//   - 500: Cache backend failure (CACHE_ERROR)
func (h *WeatherHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	city, err := h.cityParam(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if err := h.service.InvalidateCache(r.Context(), city); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// cityParam extracts and validates the 'city' query parameter.
func (h *WeatherHandler) cityParam(r *http.Request) (string, error) {
	params := cityParams{City: r.URL.Query().Get("city")}

	if err := validate.Struct(params); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 && fieldErrors[0].Tag() == "max" {
			return "", domain.NewValidationError("city name must be at most 100 characters")
		}

		return "", domain.NewValidationError("city query parameter is required")
	}

	return params.City, nil
}

// historyLimit parses the 'limit' query parameter. Out-of-range or
// unparseable values fall back to the default page size.
func (h *WeatherHandler) historyLimit(raw string) int {
	if raw == "" {
		return h.history.Default
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > h.history.Max {
		return h.history.Default
	}

	return limit
}

// respondWithJSON sends a JSON response with the specified status code.
//
// Parameters:
//   - w: HTTP response writer
//   - status: HTTP status code to return
//   - payload: Data to encode as JSON response body
func (h *WeatherHandler) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// respondWithError sends a standardized error response.
//
// Parameters:
//   - w: HTTP response writer
//   - status: HTTP status code for the error
//   - code: Machine-readable error code
//   - message: Human-readable error message
func (h *WeatherHandler) respondWithError(w http.ResponseWriter, status int, code, message string) {
	response := ErrorResponse{
		Error:   code,
		Message: message,
	}

	h.respondWithJSON(w, status, response)
}

// handleServiceError maps domain errors to appropriate HTTP responses.
//
// Parameters:
//   - w: HTTP response writer
//   - r: HTTP request for context extraction
//   - err: Error from service layer to map to HTTP response
//
// Error mappings:
//   - VALIDATION_ERROR -> 400 Bad Request
//   - CITY_NOT_FOUND -> 404 Not Found
//   - RATE_LIMITED -> 429 Too Many Requests
//   - UPSTREAM_ERROR -> 502 Bad Gateway
//   - UPSTREAM_TIMEOUT -> 503 Service Unavailable
//   - CACHE_ERROR, DATABASE_ERROR -> 500 Internal Server Error
//   - Other errors -> 500 Internal Server Error
func (h *WeatherHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var e *domain.WeatherError

	switch {
	case errors.As(err, &e):
		switch e.Code {
		case domain.ErrCodeValidation:
			h.respondWithError(w, http.StatusBadRequest, e.Code, e.Message)
		case domain.ErrCodeCityNotFound:
			h.respondWithError(w, http.StatusNotFound, e.Code, e.Message)
		case domain.ErrCodeRateLimited:
			h.respondWithError(w, http.StatusTooManyRequests, e.Code, e.Message)
		case domain.ErrCodeUpstream:
			h.logger.Warn("upstream provider error",
				zap.Error(err),
				zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			)

			h.respondWithError(
				w,
				http.StatusBadGateway,
				e.Code,
				"Weather provider is temporarily unavailable",
			)
		case domain.ErrCodeUpstreamTimeout:
			h.logger.Warn("upstream provider timeout",
				zap.Error(err),
				zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			)

			h.respondWithError(
				w,
				http.StatusServiceUnavailable,
				e.Code,
				"Weather provider did not respond in time",
			)
		case domain.ErrCodeCache, domain.ErrCodeDatabase:
			h.logger.Error("infrastructure error",
				zap.Error(err),
				zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
				zap.String("request_id", middleware.GetRequestID(r.Context())),
			)

			h.respondWithError(
				w,
				http.StatusInternalServerError,
				e.Code,
				"An internal error occurred",
			)
		default:
			h.respondWithError(
				w,
				http.StatusInternalServerError,
				"INTERNAL_ERROR",
				"An unexpected error occurred",
			)
		}
	default:
		h.logger.Error("unexpected error",
			zap.Error(err),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)

		h.respondWithError(
			w,
			http.StatusInternalServerError,
			"INTERNAL_ERROR",
			"An unexpected error occurred",
		)
	}
}
