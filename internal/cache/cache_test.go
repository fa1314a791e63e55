package cache_test

import (
	"context"
	"testing"
	"time"

	"akun/internal/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisCache_SetGetDeleteExists(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	c := cache.NewRedisCache(client)

	ok, err := c.Set(ctx, "k", "v", time.Minute, cache.SetOptions{})
	require.NoError(t, err)
	assert.True(t, ok)

	value, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)

	_, err = c.Set(ctx, "k", "v", time.Minute, cache.SetOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.Delete(ctx, "k"))
	exists, err = c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisCache_ConditionalSet(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	c := cache.NewRedisCache(client)

	ok, err := c.Set(ctx, "k", "first", time.Minute, cache.SetOptions{XX: true})
	require.NoError(t, err)
	assert.False(t, ok, "XX must not create a missing key")

	ok, err = c.Set(ctx, "k", "first", time.Minute, cache.SetOptions{NX: true})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Set(ctx, "k", "second", time.Minute, cache.SetOptions{NX: true})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Set(ctx, "k", "third", time.Minute, cache.SetOptions{XX: true})
	require.NoError(t, err)
	assert.True(t, ok)

	value, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "third", value)

	_, err = c.Set(ctx, "k", "x", time.Minute, cache.SetOptions{NX: true, XX: true})
	assert.Error(t, err)
}

func TestCodeCache_RoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	codes := cache.NewCodeCache(cache.NewRedisCache(client), 10*time.Minute)

	_, err := codes.Lookup(ctx, "a@x.com")
	assert.True(t, cache.IsMiss(err))

	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, codes.Put(ctx, cache.Entry{
		Email:     "a@x.com",
		Code:      "AB12C3",
		CreatedAt: issued,
		ExpiresAt: issued.Add(5 * time.Minute),
	}))

	entry, err := codes.Lookup(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "AB12C3", entry.Code)
	assert.True(t, entry.CreatedAt.Equal(issued))

	assert.Equal(t, 10*time.Minute, mr.TTL("verification:a@x.com"))

	mr.FastForward(10*time.Minute + time.Second)
	_, err = codes.Lookup(ctx, "a@x.com")
	assert.True(t, cache.IsMiss(err))
}
