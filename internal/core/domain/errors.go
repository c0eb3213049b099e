package domain

import "fmt"

// Error codes used for programmatic handling at the HTTP boundary.
// Every error surfaced by the service layer carries exactly one of these.
const (
	// ErrCodeValidation indicates missing or malformed client input
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeCityNotFound indicates the provider does not know the city
	ErrCodeCityNotFound = "CITY_NOT_FOUND"

	// ErrCodeUpstream indicates the provider returned an unusable response
	ErrCodeUpstream = "UPSTREAM_ERROR"

	// ErrCodeUpstreamTimeout indicates the provider call timed out or the
	// circuit breaker is refusing calls
	ErrCodeUpstreamTimeout = "UPSTREAM_TIMEOUT"

	// ErrCodeRateLimited indicates the client exhausted its request window
	ErrCodeRateLimited = "RATE_LIMITED"

	// ErrCodeCache indicates a cache store fault
	ErrCodeCache = "CACHE_ERROR"

	// ErrCodeDatabase indicates a history store fault
	ErrCodeDatabase = "DATABASE_ERROR"
)

// WeatherError represents domain-specific errors that can occur during weather operations.
// It provides structured error information with error codes and optional underlying causes.
type WeatherError struct {
	// Code identifies the type of error for programmatic handling
	Code string

	// Message provides a human-readable error description
	Message string

	// Cause wraps an underlying error if applicable
	Cause error
}

// Error implements the error interface for WeatherError.
// It formats the error message to include the code, message, and underlying cause.
func (e *WeatherError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *WeatherError) Unwrap() error {
	return e.Cause
}

// NewValidationError builds a client-input error.
func NewValidationError(message string) *WeatherError {
	return &WeatherError{Code: ErrCodeValidation, Message: message}
}

// NewCityNotFoundError builds an unknown-city error for the given raw name.
func NewCityNotFoundError(city string) *WeatherError {
	return &WeatherError{
		Code:    ErrCodeCityNotFound,
		Message: fmt.Sprintf("city %q not found", city),
	}
}

// NewUpstreamError builds a provider-failure error wrapping its cause.
func NewUpstreamError(message string, cause error) *WeatherError {
	return &WeatherError{Code: ErrCodeUpstream, Message: message, Cause: cause}
}

// NewUpstreamTimeoutError builds a provider-timeout error wrapping its cause.
func NewUpstreamTimeoutError(message string, cause error) *WeatherError {
	return &WeatherError{Code: ErrCodeUpstreamTimeout, Message: message, Cause: cause}
}

// NewRateLimitedError builds a quota-exhausted error carrying the window hint.
func NewRateLimitedError(message string) *WeatherError {
	return &WeatherError{Code: ErrCodeRateLimited, Message: message}
}
