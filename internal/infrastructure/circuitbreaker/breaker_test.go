package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func failingAfter(counts gobreaker.Counts) bool {
	return counts.ConsecutiveFailures >= 3
}

// TestBreaker_Execute verifies pass-through behavior while the circuit is
// closed.
func TestBreaker_Execute(t *testing.T) {
	cb := New(Config{Name: "test", Timeout: time.Second}, zap.NewNop())
	ctx := context.Background()

	err := cb.Execute(ctx, "fetch", func() error { return nil })
	assert.NoError(t, err)

	expected := errors.New("upstream failure")
	err = cb.Execute(ctx, "fetch", func() error { return expected })
	assert.ErrorIs(t, err, expected)

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

// TestBreaker_OpensAfterConsecutiveFailures verifies that the breaker trips
// and then refuses calls without invoking the protected function.
func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(Config{
		Name:        "test",
		Timeout:     time.Minute,
		ReadyToTrip: failingAfter,
	}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, "fetch", func() error { return errors.New("upstream failure") })
		assert.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())

	var called bool

	err := cb.Execute(ctx, "fetch", func() error {
		called = true
		return nil
	})

	assert.True(t, IsOpen(err))
	assert.False(t, called)
}

// TestBreaker_IsSuccessfulClassification verifies that errors classified as
// successful never trip the breaker. Unknown-city responses use this so a
// burst of typos cannot open the circuit.
func TestBreaker_IsSuccessfulClassification(t *testing.T) {
	benign := errors.New("city not found")

	cb := New(Config{
		Name:        "test",
		Timeout:     time.Minute,
		ReadyToTrip: failingAfter,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, benign)
		},
	}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		err := cb.Execute(ctx, "fetch", func() error { return benign })
		assert.ErrorIs(t, err, benign)
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

// TestIsOpen verifies classification of breaker-refusal errors.
func TestIsOpen(t *testing.T) {
	assert.True(t, IsOpen(gobreaker.ErrOpenState))
	assert.True(t, IsOpen(gobreaker.ErrTooManyRequests))
	assert.False(t, IsOpen(errors.New("upstream failure")))
	assert.False(t, IsOpen(nil))
}

// TestManager verifies breaker reuse and stats reporting.
func TestManager(t *testing.T) {
	m := NewManager(zap.NewNop())

	first := m.GetBreaker("openweathermap", Config{Timeout: time.Second})
	second := m.GetBreaker("openweathermap", Config{Timeout: time.Hour})

	assert.Same(t, first, second)

	stats := m.GetStats()
	assert.Contains(t, stats, "openweathermap")

	entry, ok := stats["openweathermap"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "closed", entry["state"])
}
