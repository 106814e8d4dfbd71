// Package cache wraps the optional Redis connection.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/justsurfingit/jobtrackr/internal/config"
)

// ErrMiss is returned by JSONCache.Get when the key is absent.
var ErrMiss = errors.New("cache miss")

func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// JSONCache stores JSON-encoded values under a key prefix. A nil client makes every call a miss,
// so callers do not need to branch on whether Redis is configured.
type JSONCache struct {
	client *redis.Client
	prefix string
}

func NewJSONCache(client *redis.Client, prefix string) *JSONCache {
	return &JSONCache{client: client, prefix: prefix}
}

func (c *JSONCache) Get(ctx context.Context, key string, dst any) error {
	if c == nil || c.client == nil {
		return ErrMiss
	}
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (c *JSONCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, raw, ttl).Err()
}

func (c *JSONCache) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.prefix+key).Err()
}
