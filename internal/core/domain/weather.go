// Package domain contains the core business entities and domain logic for the weather service.
// This package defines the fundamental types and business rules that are independent
// of external frameworks and infrastructure concerns.
package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Weather represents a current-conditions report for a single city.
// This is the main aggregate root combining the provider measurements
// with metadata about when the data was retrieved.
type Weather struct {
	// City is the display name of the city ("São Paulo", not "são paulo")
	City string

	// Country is the ISO country code reported by the provider
	Country string

	// Temperature is the current temperature in degrees Celsius,
	// rounded to one decimal place
	Temperature float64

	// Description is a short human-readable conditions summary
	Description string

	// Humidity is the relative humidity percentage
	Humidity int

	// Pressure is the atmospheric pressure in hPa
	Pressure int

	// WindSpeed is the wind speed in meters per second
	WindSpeed float64

	// FetchedAt records when this data was retrieved from the provider
	FetchedAt time.Time
}

// WeatherQuery represents one historical lookup. A record is created on
// every lookup, cache hit or miss, and is immutable once created.
// Rows are deleted only by the retention policy.
type WeatherQuery struct {
	// ID uniquely identifies this record within the store
	ID int64

	// City is the normalized display name the lookup resolved to
	City string

	// IPAddress is the client address the lookup originated from
	IPAddress string

	// Temperature is the temperature returned to the client, in Celsius
	Temperature float64

	// Description is the conditions summary returned to the client
	Description string

	// Country is the ISO country code returned to the client
	Country string

	// Humidity is the relative humidity percentage returned to the client
	Humidity int

	// Pressure is the atmospheric pressure returned to the client
	Pressure int

	// WindSpeed is the wind speed returned to the client
	WindSpeed float64

	// Cached reports whether the lookup was served from the cache
	Cached bool

	// CreatedAt records when the lookup happened
	CreatedAt time.Time
}

var titleCaser = cases.Title(language.Und)

// NormalizeCity canonicalizes a raw city name for use as a cache or
// lookup key: surrounding whitespace is trimmed, inner runs of
// whitespace collapse to a single space, and the result is lowercased.
// "  São   Paulo " and "são paulo" normalize to the same key.
func NormalizeCity(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// DisplayCity converts a raw city name into its canonical display form:
// whitespace is canonicalized as in NormalizeCity and each word is
// title-cased with Unicode-aware rules ("são paulo" -> "São Paulo").
func DisplayCity(raw string) string {
	return TitleCase(strings.Join(strings.Fields(raw), " "))
}

// TitleCase capitalizes each word using Unicode-aware casing rules.
// Weather descriptions are stored this way ("clear sky" -> "Clear Sky").
func TitleCase(s string) string {
	return titleCaser.String(s)
}

// CacheKey derives the cache key for a city. All spellings that
// normalize to the same name share one entry.
func CacheKey(raw string) string {
	return "weather_cache:" + NormalizeCity(raw)
}

// ValidateCity checks that a raw city name is usable as a lookup input.
// A name consisting only of whitespace is rejected.
func ValidateCity(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &WeatherError{
			Code:    ErrCodeValidation,
			Message: "city parameter is required",
		}
	}

	return nil
}
