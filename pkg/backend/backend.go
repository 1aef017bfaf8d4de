// Package backend defines the counter storage contract shared by throttles
// and provides two implementations with the same API:
//
//   - MemoryBackend: a mutex-guarded in-process map. State is local to the
//     process, which makes it the reference implementation for tests and
//     single-instance deployments.
//   - RedisBackend: a distributed counter store backed by Redis, for
//     enforcing one global budget across many application instances.
//
// # Error Policy
//
// Operations distinguish two failure kinds that callers must never conflate:
//
//   - ErrKeyNotFound: the key does not exist or its TTL has lapsed. This is a
//     normal, logical outcome.
//   - ErrBackendUnavailable: the store itself could not be reached or failed.
//     Callers decide fail-open vs fail-closed; this package does not impose a
//     policy.
//
// Both are matchable with errors.Is.
package backend

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound reports that a key is absent or has expired.
var ErrKeyNotFound = errors.New("backend: key not found")

// ErrBackendUnavailable reports a connectivity or storage failure, as
// distinct from any logical outcome such as a missing key.
var ErrBackendUnavailable = errors.New("backend: unavailable")

// CounterBackend is a key-value store of integer counters with TTL support.
// Keys are opaque UTF-8 strings. A ttl of 0 means the key never expires.
//
// Implementations must be safe for concurrent use, and Increment must be
// atomic: when multiple callers race on the same key, no update may be lost
// and every increment observes all prior increments to that key.
type CounterBackend interface {
	// Increment atomically increments the counter for key, creating it at 1
	// if absent, and (re)sets its expiry to ttl from now. It returns the
	// post-increment value.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the current value for key, or ErrKeyNotFound if the key is
	// absent or expired.
	Get(ctx context.Context, key string) (int64, error)

	// Set stores value under key with the given expiry.
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every counter owned by this backend.
	Clear(ctx context.Context) error
}
