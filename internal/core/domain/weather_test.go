package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeCity verifies that every spelling of a city collapses to a
// single canonical key form.
func TestNormalizeCity(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase unchanged", input: "london", expected: "london"},
		{name: "mixed case lowered", input: "London", expected: "london"},
		{name: "surrounding whitespace trimmed", input: "  london  ", expected: "london"},
		{name: "inner whitespace collapsed", input: "new   york", expected: "new york"},
		{name: "tabs and spaces collapsed", input: "\tnew \t york\n", expected: "new york"},
		{name: "unicode preserved", input: "  São   Paulo ", expected: "são paulo"},
		{name: "blank becomes empty", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCity(tt.input))
		})
	}
}

// TestDisplayCity verifies canonical display casing.
func TestDisplayCity(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "single word", input: "london", expected: "London"},
		{name: "uppercase word lowered first", input: "new   YORK", expected: "New York"},
		{name: "unicode title casing", input: "são paulo", expected: "São Paulo"},
		{name: "already canonical", input: "Rio De Janeiro", expected: "Rio De Janeiro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DisplayCity(tt.input))
		})
	}
}

// TestCacheKey verifies that equivalent spellings share one cache entry.
func TestCacheKey(t *testing.T) {
	assert.Equal(t, "weather_cache:london", CacheKey("London"))
	assert.Equal(t, "weather_cache:são paulo", CacheKey("  São   Paulo "))
	assert.Equal(t, CacheKey("NEW YORK"), CacheKey("new   york"))
}

// TestTitleCase verifies description casing.
func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Clear Sky", TitleCase("clear sky"))
	assert.Equal(t, "Light Rain", TitleCase("light rain"))
	assert.Equal(t, "", TitleCase(""))
}

// TestValidateCity verifies input validation for lookups.
func TestValidateCity(t *testing.T) {
	assert.NoError(t, ValidateCity("London"))
	assert.NoError(t, ValidateCity("  São Paulo "))

	for _, input := range []string{"", "   ", "\t\n"} {
		err := ValidateCity(input)
		assert.Error(t, err)

		var weatherErr *WeatherError
		assert.ErrorAs(t, err, &weatherErr)
		assert.Equal(t, ErrCodeValidation, weatherErr.Code)
	}
}

// TestWeatherError verifies formatting and unwrapping behavior.
func TestWeatherError(t *testing.T) {
	t.Run("formats code and message", func(t *testing.T) {
		err := NewValidationError("city parameter is required")
		assert.Equal(t, "VALIDATION_ERROR: city parameter is required", err.Error())
	})

	t.Run("includes underlying cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := NewUpstreamError("failed to fetch weather", cause)

		assert.Equal(t, "UPSTREAM_ERROR: failed to fetch weather: connection reset", err.Error())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("unwraps through errors.As", func(t *testing.T) {
		var wrapped error = NewCityNotFoundError("Atlantis")

		var weatherErr *WeatherError
		assert.ErrorAs(t, wrapped, &weatherErr)
		assert.Equal(t, ErrCodeCityNotFound, weatherErr.Code)
		assert.Equal(t, `city "Atlantis" not found`, weatherErr.Message)
	})

	t.Run("no cause formats without suffix", func(t *testing.T) {
		err := NewRateLimitedError("Rate limit exceeded")
		assert.Equal(t, "RATE_LIMITED: Rate limit exceeded", err.Error())
		assert.Nil(t, errors.Unwrap(err))
	})
}
