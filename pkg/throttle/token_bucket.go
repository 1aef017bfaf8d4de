package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ekefan/admit/pkg/clock"
)

// TokenBucketConfig holds the construction-time parameters of a TokenBucket.
type TokenBucketConfig struct {
	// Capacity is the maximum number of tokens the bucket holds; a fresh
	// identity starts with a full bucket.
	Capacity int64
	// RefillAmount tokens are added every RefillInterval, capped at Capacity.
	RefillAmount   int64
	RefillInterval time.Duration
}

// Validate rejects configurations that would make the bucket degenerate.
func (c TokenBucketConfig) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillAmount <= 0 {
		return fmt.Errorf("%w: refill amount must be positive, got %d", ErrInvalidConfig, c.RefillAmount)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %s", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

type tokenBucketState struct {
	tokens     int64
	lastRefill time.Time
}

// TokenBucket admits requests while an identity's bucket holds tokens. Tokens
// are restored in whole-interval jumps, never continuously: each elapsed
// RefillInterval adds RefillAmount tokens up to Capacity.
//
// Safe for concurrent use; all per-identity state lives behind one mutex.
type TokenBucket struct {
	cfg      TokenBucketConfig
	clock    clock.Clock
	recorder Recorder
	tags     map[string]string

	mu     sync.Mutex
	states map[string]*tokenBucketState
}

// NewTokenBucket constructs a TokenBucket, rejecting invalid configuration
// immediately.
func NewTokenBucket(cfg TokenBucketConfig, opts ...Option) (*TokenBucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &TokenBucket{
		cfg:      cfg,
		clock:    o.clock,
		recorder: o.recorder,
		tags:     map[string]string{"algorithm": "token_bucket"},
		states:   make(map[string]*tokenBucketState),
	}, nil
}

// AllowRequest refills the identity's bucket for any whole intervals that
// have elapsed, then consumes one token if available. The refill always
// happens before the admit/deny decision: a request arriving with zero
// tokens and no full interval elapsed is denied.
func (t *TokenBucket) AllowRequest(_ context.Context, identity string) (Decision, error) {
	start := t.clock.Now()

	t.mu.Lock()
	st := t.stateLocked(identity, start)
	t.refillLocked(st, start)

	allowed := st.tokens > 0
	if allowed {
		st.tokens--
	}
	dec := Decision{
		Allow:     allowed,
		Remaining: st.tokens,
		ResetTime: t.resetTimeLocked(st, start),
	}
	if !allowed {
		dec.RetryAfter = st.lastRefill.Add(t.cfg.RefillInterval).Sub(start)
	}
	t.mu.Unlock()

	t.record(dec, t.clock.Since(start))
	return dec, nil
}

// Tokens reports the identity's available tokens, applying the same lazy
// refill as AllowRequest without consuming one. An identity that has never
// been seen reports a full bucket.
func (t *TokenBucket) Tokens(identity string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	st := t.stateLocked(identity, now)
	t.refillLocked(st, now)
	return st.tokens
}

func (t *TokenBucket) stateLocked(identity string, now time.Time) *tokenBucketState {
	st, ok := t.states[identity]
	if !ok {
		st = &tokenBucketState{
			tokens:     t.cfg.Capacity,
			lastRefill: now,
		}
		t.states[identity] = st
	}
	return st
}

// refillLocked adds RefillAmount tokens for every whole RefillInterval that
// has elapsed and advances lastRefill by exactly those intervals. It never
// snaps lastRefill to now, so fractional progress toward the next refill is
// preserved.
func (t *TokenBucket) refillLocked(st *tokenBucketState, now time.Time) {
	elapsed := now.Sub(st.lastRefill)
	if elapsed < t.cfg.RefillInterval {
		return
	}
	intervals := int64(elapsed / t.cfg.RefillInterval)
	st.tokens += t.cfg.RefillAmount * intervals
	if st.tokens > t.cfg.Capacity {
		st.tokens = t.cfg.Capacity
	}
	st.lastRefill = st.lastRefill.Add(time.Duration(intervals) * t.cfg.RefillInterval)
}

// resetTimeLocked estimates when the bucket is full again if no more tokens
// are consumed.
func (t *TokenBucket) resetTimeLocked(st *tokenBucketState, now time.Time) time.Time {
	deficit := t.cfg.Capacity - st.tokens
	if deficit <= 0 {
		return now
	}
	intervals := (deficit + t.cfg.RefillAmount - 1) / t.cfg.RefillAmount
	return st.lastRefill.Add(time.Duration(intervals) * t.cfg.RefillInterval)
}

func (t *TokenBucket) record(dec Decision, elapsed time.Duration) {
	if dec.Allow {
		t.recorder.Add(MetricAllowed, 1, t.tags)
	} else {
		t.recorder.Add(MetricDenied, 1, t.tags)
	}
	t.recorder.Observe(MetricLatency, elapsed.Seconds(), t.tags)
}
