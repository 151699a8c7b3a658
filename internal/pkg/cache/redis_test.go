package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	c := NewRedisCache("localhost:0", "order-service")
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, "order-service:create_order:abc", c.GenerateKey("create_order", "abc"))
}

// Runs only with TEST_REDIS_ADDR set, e.g. localhost:6379.
func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	c := NewRedisCache(addr, "order-service-test")
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	key := c.GenerateKey("create_order", uuid.NewString())

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got)

	ok, err := c.SetNX(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, key, "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, "order-1", time.Minute))
	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "order-1", got)

	require.NoError(t, c.Delete(ctx, key))
	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got)
}
