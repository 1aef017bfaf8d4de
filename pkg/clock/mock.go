package clock

import (
	"sync"
	"time"
)

// MockClock is a controllable clock for deterministic tests. Time stands
// still until Advance or Set is called, so a test can fast-forward through
// refill intervals and TTLs instantly.
//
// Safe for concurrent use.
type MockClock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewMockClock creates a MockClock starting at the given instant.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{current: start}
}

// Now returns the current mock time.
func (c *MockClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Since returns the mock duration elapsed since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Sub(t)
}

// Advance moves the mock clock forward by d.
// Panics if d is negative.
func (c *MockClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set moves the mock clock to an exact instant.
// Panics if t is before the current time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.current) {
		panic("clock: cannot set time to the past")
	}
	c.current = t
}
