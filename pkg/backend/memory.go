package backend

import (
	"context"
	"sync"
	"time"

	"github.com/ekefan/admit/pkg/clock"
)

type counter struct {
	value     int64
	expiresAt time.Time // zero value means no expiration
}

func (c counter) expired(now time.Time) bool {
	return !c.expiresAt.IsZero() && !now.Before(c.expiresAt)
}

// MemoryBackend is the in-process reference implementation of CounterBackend,
// backed by a mutex-guarded map. It reads time through an injected Clock so
// that expiry checks and algorithm timing agree under test.
//
// Expired counters are dropped lazily on access; long-lived processes with
// high-cardinality keys should call Purge periodically.
type MemoryBackend struct {
	mu       sync.Mutex
	counters map[string]counter
	clock    clock.Clock
}

// NewMemoryBackend constructs an empty MemoryBackend using the given clock.
func NewMemoryBackend(c clock.Clock) *MemoryBackend {
	return &MemoryBackend{
		counters: make(map[string]counter),
		clock:    c,
	}
}

func (m *MemoryBackend) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	c, ok := m.counters[key]
	if !ok || c.expired(now) {
		c = counter{}
	}
	c.value++
	if ttl > 0 {
		c.expiresAt = now.Add(ttl)
	} else {
		c.expiresAt = time.Time{}
	}
	m.counters[key] = c
	return c.value, nil
}

func (m *MemoryBackend) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[key]
	if !ok {
		return 0, ErrKeyNotFound
	}
	if c.expired(m.clock.Now()) {
		delete(m.counters, key)
		return 0, ErrKeyNotFound
	}
	return c.value, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := counter{value: value}
	if ttl > 0 {
		c.expiresAt = m.clock.Now().Add(ttl)
	}
	m.counters[key] = c
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.counters, key)
	return nil
}

func (m *MemoryBackend) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters = make(map[string]counter)
	return nil
}

// Purge removes all expired counters. Call periodically for long-running
// processes.
func (m *MemoryBackend) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for key, c := range m.counters {
		if c.expired(now) {
			delete(m.counters, key)
		}
	}
}

// Len returns the number of stored counters, including expired ones not yet
// purged.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}
