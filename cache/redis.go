package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a core.Cache implementation over a shared Redis instance,
// enabling multiple server instances to observe the same session state.
// Get refreshes the key's sliding expiration with EXPIRE after a hit.
type Redis struct {
	client     *redis.Client
	slidingTTL time.Duration
}

// NewRedis constructs a cache over an existing client. The caller owns the
// client lifecycle. slidingTTL is applied on every Get hit; 0 disables the
// refresh.
func NewRedis(client *redis.Client, slidingTTL time.Duration) *Redis {
	return &Redis{client: client, slidingTTL: slidingTTL}
}

// NewRedisFromAddr dials a Redis instance at addr and returns a cache over it.
func NewRedisFromAddr(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return NewRedis(client, 30*time.Minute), nil
}

// Set stores value under key with the given ttl (0 = no expiration).
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Get returns the stored value and refreshes its sliding expiration. Misses
// report (nil, false, nil).
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	pipe := c.client.Pipeline()
	get := pipe.Get(ctx, key)
	if c.slidingTTL > 0 {
		pipe.Expire(ctx, key, c.slidingTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	data, err := get.Bytes()
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Delete removes the key if present.
func (c *Redis) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client connection pool.
func (c *Redis) Close() error {
	return c.client.Close()
}
