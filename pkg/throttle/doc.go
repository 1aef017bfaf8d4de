// Package throttle provides per-identity admission control: a family of
// interchangeable rate-limiting algorithms that decide, per identity key,
// whether a unit of work may proceed right now.
//
// The primary entry point is the Throttle interface:
//
//	dec, err := t.AllowRequest(ctx, identity)
//
// The returned Decision reports whether the request is admitted, how much
// budget remains, and timing hints for callers that want to set rate-limit
// headers (for example, Retry-After). A denied admission is a normal
// Decision, never an error; a non-nil error means a genuine failure such as
// an unreachable counter backend, and callers must treat the two differently
// (reject-with-backoff vs retry).
//
// # Algorithms
//
// Three algorithms implement Throttle, each owning its per-identity state:
//
//   - TokenBucket: each identity starts with a full bucket of Capacity
//     tokens; RefillAmount tokens return every RefillInterval, in whole
//     jumps. Each admitted request consumes one token. Naturally supports
//     bursts up to Capacity while enforcing a long-term average rate.
//
//   - LeakyBucket: models a queue filled by each admitted request and
//     drained continuously at LeakRate units per second; admission fails
//     once the queue is full. Smooths traffic rather than allowing bursts.
//
//   - AdaptiveThrottle: a windowed admission check whose live rate is
//     steered between MinRate and MaxRate by externally reported load
//     (UpdateMetrics), with a cooldown between adjustments. Counts against a
//     backend.CounterBackend, so replicas sharing a backend share budgets.
//
// # Key-Scoped Wrappers
//
// PerIPThrottle, PerUserThrottle and ScopedThrottle compose an identity-to-
// key rule over one algorithm instance. They add no admission logic; their
// contract is key isolation. ScopedThrottle formats keys as
// "<scope>:<identity>".
//
// # Time
//
// Every algorithm reads time exclusively through an injected clock.Clock
// (WithClock). With a clock.MockClock, refills, leaks and cooldowns can be
// fast-forwarded deterministically, so none of this package's behavior
// depends on real wall-clock elapsed time under test.
//
// # Concurrency
//
// All throttles are safe for concurrent use. Per-identity state inside an
// algorithm instance is guarded by an instance-scoped mutex; the only point
// where a call may suspend is inside a remote backend round trip, never
// inside local arithmetic. Admission checks are not mid-flight cancellable:
// callers bound the backend round trip with their context deadline and must
// treat a timeout as a backend failure, not as a denial.
//
// # Configuration
//
// Configs are plain value structs validated at construction; constructors
// return ErrInvalidConfig-wrapped errors immediately and never defer
// validation to call time. Cross-cutting collaborators are injected with
// functional options: WithClock, WithRecorder, WithLogger.
package throttle
