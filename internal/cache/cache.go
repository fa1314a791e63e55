package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key does not exist or has expired.
var ErrMiss = errors.New("cache miss")

// SetOptions are the conditional flags of Set.
type SetOptions struct {
	NX bool // only set if the key does not exist
	XX bool // only set if the key already exists
}

// Cache is an expiring key-value store.
type Cache interface {
	// Set stores value under key for ttl and reports whether it was written.
	// A write skipped because of NX or XX is not an error.
	Set(ctx context.Context, key, value string, ttl time.Duration, opts SetOptions) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// RedisCache implements Cache on top of a Redis client.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache creates a new RedisCache.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Set writes value with SET key value PX ttl [NX|XX].
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration, opts SetOptions) (bool, error) {
	if opts.NX && opts.XX {
		return false, fmt.Errorf("cache set %s: NX and XX are mutually exclusive", key)
	}
	args := redis.SetArgs{TTL: ttl}
	switch {
	case opts.NX:
		args.Mode = "NX"
	case opts.XX:
		args.Mode = "XX"
	}
	err := c.client.SetArgs(ctx, key, value, args).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache set %s: %w", key, err)
	}
	return true, nil
}

// Get returns the value stored under key, or ErrMiss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache get %s: %w", key, err)
	}
	return value, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists %s: %w", key, err)
	}
	return n > 0, nil
}
