package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix  = "admit:"
	defaultTimeout = 5 * time.Second
)

// RedisOption configures a RedisBackend.
type RedisOption func(*RedisBackend)

// WithPrefix sets the key prefix used for all counters (default "admit:").
// The prefix also scopes Clear, so two backends with distinct prefixes can
// share one Redis instance without clobbering each other.
func WithPrefix(prefix string) RedisOption {
	return func(b *RedisBackend) {
		b.prefix = prefix
	}
}

// WithTimeout sets a per-operation timeout applied when the caller's context
// carries no deadline of its own (default 5s).
func WithTimeout(d time.Duration) RedisOption {
	return func(b *RedisBackend) {
		b.timeout = d
	}
}

// RedisBackend implements CounterBackend on a Redis instance, giving every
// process that shares the instance one global budget per key. Increment uses
// a single-command INCR plus a pipelined PEXPIRE, so concurrent increments on
// one key are never lost.
type RedisBackend struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisBackend constructs a RedisBackend and verifies connectivity with a
// ping. A failed ping is reported as ErrBackendUnavailable.
func NewRedisBackend(client *redis.Client, opts ...RedisOption) (*RedisBackend, error) {
	b := &RedisBackend{
		client:  client,
		prefix:  defaultPrefix,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, unavailable(err)
	}
	return b, nil
}

func (b *RedisBackend) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := b.opContext(ctx)
	defer cancel()

	pipe := b.client.TxPipeline()
	incr := pipe.Incr(ctx, b.prefix+key)
	if ttl > 0 {
		pipe.PExpire(ctx, b.prefix+key, ttl)
	} else {
		pipe.Persist(ctx, b.prefix+key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, unavailable(err)
	}
	return incr.Val(), nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) (int64, error) {
	ctx, cancel := b.opContext(ctx)
	defer cancel()

	val, err := b.client.Get(ctx, b.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrKeyNotFound
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return val, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	ctx, cancel := b.opContext(ctx)
	defer cancel()

	if err := b.client.Set(ctx, b.prefix+key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	ctx, cancel := b.opContext(ctx)
	defer cancel()

	if err := b.client.Del(ctx, b.prefix+key).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (b *RedisBackend) Clear(ctx context.Context) error {
	ctx, cancel := b.opContext(ctx)
	defer cancel()

	iter := b.client.Scan(ctx, 0, b.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := b.client.Del(ctx, iter.Val()).Err(); err != nil {
			return unavailable(err)
		}
	}
	if err := iter.Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// opContext attaches the backend's default timeout when the caller supplied
// no deadline, so a slow Redis cannot stall an admission check indefinitely.
func (b *RedisBackend) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}
