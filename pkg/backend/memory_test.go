package backend

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekefan/admit/pkg/clock"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMemoryBackend_IncrementCreatesAtOne(t *testing.T) {
	mc := clock.NewMockClock(epoch)
	b := NewMemoryBackend(mc)
	ctx := context.Background()

	count, err := b.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = b.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMemoryBackend_GetMissingKey(t *testing.T) {
	b := NewMemoryBackend(clock.NewMockClock(epoch))

	_, err := b.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryBackend_TTLExpiry(t *testing.T) {
	mc := clock.NewMockClock(epoch)
	b := NewMemoryBackend(mc)
	ctx := context.Background()

	_, err := b.Increment(ctx, "k", 10*time.Second)
	require.NoError(t, err)

	mc.Advance(9 * time.Second)
	val, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)

	mc.Advance(time.Second)
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// An increment after expiry starts a fresh counter.
	count, err := b.Increment(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryBackend_IncrementRearmsTTL(t *testing.T) {
	mc := clock.NewMockClock(epoch)
	b := NewMemoryBackend(mc)
	ctx := context.Background()

	_, err := b.Increment(ctx, "k", 10*time.Second)
	require.NoError(t, err)

	// Each increment pushes the expiry out from "now".
	mc.Advance(8 * time.Second)
	_, err = b.Increment(ctx, "k", 10*time.Second)
	require.NoError(t, err)

	mc.Advance(8 * time.Second)
	val, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), val)
}

func TestMemoryBackend_ZeroTTLNeverExpires(t *testing.T) {
	mc := clock.NewMockClock(epoch)
	b := NewMemoryBackend(mc)
	ctx := context.Background()

	_, err := b.Increment(ctx, "k", 0)
	require.NoError(t, err)

	mc.Advance(1000 * time.Hour)
	val, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)
}

func TestMemoryBackend_SetGetDelete(t *testing.T) {
	mc := clock.NewMockClock(epoch)
	b := NewMemoryBackend(mc)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k", 42, time.Minute))

	val, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(42), val)

	require.NoError(t, b.Delete(ctx, "k"))
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// Deleting an absent key is not an error.
	assert.NoError(t, b.Delete(ctx, "k"))
}

func TestMemoryBackend_Clear(t *testing.T) {
	mc := clock.NewMockClock(epoch)
	b := NewMemoryBackend(mc)
	ctx := context.Background()

	_, _ = b.Increment(ctx, "a", 0)
	_, _ = b.Increment(ctx, "b", 0)
	require.NoError(t, b.Clear(ctx))

	_, err := b.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, 0, b.Len())
}

func TestMemoryBackend_Purge(t *testing.T) {
	mc := clock.NewMockClock(epoch)
	b := NewMemoryBackend(mc)
	ctx := context.Background()

	_, _ = b.Increment(ctx, "short", time.Second)
	_, _ = b.Increment(ctx, "long", time.Hour)
	_, _ = b.Increment(ctx, "forever", 0)
	require.Equal(t, 3, b.Len())

	mc.Advance(time.Minute)
	b.Purge()

	assert.Equal(t, 2, b.Len())
	_, err := b.Get(ctx, "long")
	assert.NoError(t, err)
}

// Race test: concurrent increments on one key must never lose an update.
func TestMemoryBackend_AtomicIncrement(t *testing.T) {
	mc := clock.NewMockClock(epoch)
	b := NewMemoryBackend(mc)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		go func() {
			defer wg.Done()
			_, _ = b.Increment(ctx, "k", time.Minute)
		}()
	}
	wg.Wait()

	val, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(100), val)
}

func BenchmarkMemoryBackend_Increment(b *testing.B) {
	back := NewMemoryBackend(clock.NewRealClock())
	ctx := context.Background()

	for b.Loop() {
		_, _ = back.Increment(ctx, "bench", time.Minute)
	}
}
