package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisBackend(t *testing.T, opts ...RedisOption) *RedisBackend {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	t.Cleanup(func() { client.Close() })

	b, err := NewRedisBackend(client, opts...)
	if err != nil {
		t.Skipf("Skipping integration test: Redis not available (%v)", err)
	}
	return b
}

func TestRedisBackend_Integration(t *testing.T) {
	b := newTestRedisBackend(t, WithPrefix(fmt.Sprintf("admit_test_%d:", time.Now().UnixNano())))
	ctx := context.Background()
	t.Cleanup(func() { _ = b.Clear(ctx) })

	t.Run("IncrementCreatesAtOne", func(t *testing.T) {
		count, err := b.Increment(ctx, "counter", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		count, err = b.Increment(ctx, "counter", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("GetMissingKey", func(t *testing.T) {
		_, err := b.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("SetGetDelete", func(t *testing.T) {
		require.NoError(t, b.Set(ctx, "k", 42, time.Minute))

		val, err := b.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, int64(42), val)

		require.NoError(t, b.Delete(ctx, "k"))
		_, err = b.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		_, err := b.Increment(ctx, "ttl_key", 50*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(80 * time.Millisecond)
		_, err = b.Get(ctx, "ttl_key")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("Clear", func(t *testing.T) {
		_, err := b.Increment(ctx, "a", time.Minute)
		require.NoError(t, err)
		_, err = b.Increment(ctx, "b", time.Minute)
		require.NoError(t, err)

		require.NoError(t, b.Clear(ctx))

		_, err = b.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})
}

func TestRedisBackend_ContextCancellation(t *testing.T) {
	b := newTestRedisBackend(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Increment(ctx, "cancelled", time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRedisBackend_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:1", // nothing listens here
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	_, err := NewRedisBackend(client, WithTimeout(200*time.Millisecond))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
