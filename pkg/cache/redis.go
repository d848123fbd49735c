// Package cache is a thin namespaced wrapper over go-redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paygate/pkg/utils"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client redis.UniversalClient
}

// New connects and pings; the caller owns Close.
func New(ctx context.Context, cfg utils.RedisConfig) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	return &Cache{client: rdb}, nil
}

func key(namespace, k string) string {
	return namespace + ":" + k
}

func (c *Cache) Set(ctx context.Context, namespace, k string, value any, ttl time.Duration) error {
	return c.client.Set(ctx, key(namespace, k), value, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, namespace string, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = key(namespace, k)
	}
	return c.client.Del(ctx, full...).Err()
}

// GetInt returns 0 for a missing key.
func (c *Cache) GetInt(ctx context.Context, namespace, k string) (int64, error) {
	n, err := c.client.Get(ctx, key(namespace, k)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// GetTTL returns a non-positive duration when the key is missing or has no expiry.
func (c *Cache) GetTTL(ctx context.Context, namespace, k string) (time.Duration, error) {
	return c.client.TTL(ctx, key(namespace, k)).Result()
}

// IncrWithExpire increments a counter and starts its window on the first hit.
func (c *Cache) IncrWithExpire(ctx context.Context, namespace, k string, window time.Duration) (int64, error) {
	full := key(namespace, k)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, full)
	pipe.ExpireNX(ctx, full, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return incr.Val(), nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
