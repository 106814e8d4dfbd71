package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestJSONCache(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewJSONCache(client, "test:")
	ctx := context.Background()

	var out map[string]int
	assert.ErrorIs(t, c.Get(ctx, "stats", &out), ErrMiss)

	require.NoError(t, c.Set(ctx, "stats", map[string]int{"users": 3}, time.Minute))
	require.NoError(t, c.Get(ctx, "stats", &out))
	assert.Equal(t, 3, out["users"])
	assert.True(t, mr.Exists("test:stats"))

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, c.Get(ctx, "stats", &out), ErrMiss)
}

func TestNilCacheIsAlwaysMiss(t *testing.T) {
	var c *JSONCache
	ctx := context.Background()

	assert.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	var v int
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrMiss)
	assert.ErrorIs(t, NewJSONCache(nil, "x:").Get(ctx, "k", &v), ErrMiss)
}
