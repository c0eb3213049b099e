package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestCache() *MemoryCache {
	return NewMemoryCache(time.Minute, time.Minute, nil, zap.NewNop()).(*MemoryCache)
}

// TestMemoryCache_SetAndGet verifies the basic store and retrieve cycle.
func TestMemoryCache_SetAndGet(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	err := c.Set(ctx, "weather_cache:london", []byte(`{"city":"London"}`), time.Minute)
	assert.NoError(t, err)

	value, err := c.Get(ctx, "weather_cache:london")
	assert.NoError(t, err)
	assert.Equal(t, []byte(`{"city":"London"}`), value)
}

// TestMemoryCache_MissingKey verifies the sentinel returned on a miss.
func TestMemoryCache_MissingKey(t *testing.T) {
	c := newTestCache()

	value, err := c.Get(context.Background(), "weather_cache:atlantis")

	assert.Nil(t, value)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

// TestMemoryCache_Expiry verifies that entries expire after their TTL.
func TestMemoryCache_Expiry(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	err := c.Set(ctx, "weather_cache:london", []byte("payload"), 30*time.Millisecond)
	assert.NoError(t, err)

	_, err = c.Get(ctx, "weather_cache:london")
	assert.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = c.Get(ctx, "weather_cache:london")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

// TestMemoryCache_Delete verifies removal, including of absent keys.
func TestMemoryCache_Delete(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	err := c.Set(ctx, "weather_cache:london", []byte("payload"), time.Minute)
	assert.NoError(t, err)

	err = c.Delete(ctx, "weather_cache:london")
	assert.NoError(t, err)

	_, err = c.Get(ctx, "weather_cache:london")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Deleting a key that does not exist is not an error.
	assert.NoError(t, c.Delete(ctx, "weather_cache:atlantis"))
}

// TestMemoryCache_Clear verifies that Clear drops every entry.
func TestMemoryCache_Clear(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	assert.NoError(t, c.Set(ctx, "weather_cache:london", []byte("a"), time.Minute))
	assert.NoError(t, c.Set(ctx, "weather_cache:paris", []byte("b"), time.Minute))

	err := c.Clear(ctx)
	assert.NoError(t, err)

	_, err = c.Get(ctx, "weather_cache:london")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = c.Get(ctx, "weather_cache:paris")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

// TestMemoryCache_Overwrite verifies that setting an existing key replaces
// its value.
func TestMemoryCache_Overwrite(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	assert.NoError(t, c.Set(ctx, "weather_cache:london", []byte("old"), time.Minute))
	assert.NoError(t, c.Set(ctx, "weather_cache:london", []byte("new"), time.Minute))

	value, err := c.Get(ctx, "weather_cache:london")
	assert.NoError(t, err)
	assert.Equal(t, []byte("new"), value)
}
