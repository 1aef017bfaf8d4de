package throttle

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ekefan/admit/pkg/clock"
)

// LeakyBucketConfig holds the construction-time parameters of a LeakyBucket.
type LeakyBucketConfig struct {
	// Capacity is the maximum queue depth; each admitted request adds one unit.
	Capacity int64
	// LeakRate drains the queue continuously, in units per second.
	LeakRate float64
}

// Validate rejects configurations that would make the bucket degenerate.
func (c LeakyBucketConfig) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.LeakRate <= 0 || math.IsInf(c.LeakRate, 1) || math.IsNaN(c.LeakRate) {
		return fmt.Errorf("%w: leak rate must be a positive finite number, got %v", ErrInvalidConfig, c.LeakRate)
	}
	return nil
}

type leakyBucketState struct {
	level    float64
	lastLeak time.Time
}

// LeakyBucket models a queue filled by each admitted request and drained
// continuously at LeakRate units per second. Once the queue is full, further
// requests are denied until enough has leaked out.
//
// The level stays within [0, Capacity] by construction of the admission
// check; leak accounting accumulates as floating point.
//
// Safe for concurrent use.
type LeakyBucket struct {
	cfg      LeakyBucketConfig
	clock    clock.Clock
	recorder Recorder
	tags     map[string]string

	mu     sync.Mutex
	states map[string]*leakyBucketState
}

// NewLeakyBucket constructs a LeakyBucket, rejecting invalid configuration
// immediately.
func NewLeakyBucket(cfg LeakyBucketConfig, opts ...Option) (*LeakyBucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &LeakyBucket{
		cfg:      cfg,
		clock:    o.clock,
		recorder: o.recorder,
		tags:     map[string]string{"algorithm": "leaky_bucket"},
		states:   make(map[string]*leakyBucketState),
	}, nil
}

// AllowRequest applies the leak for the elapsed time first, then admits the
// request if one more unit still fits under Capacity.
func (l *LeakyBucket) AllowRequest(_ context.Context, identity string) (Decision, error) {
	start := l.clock.Now()

	l.mu.Lock()
	st := l.stateLocked(identity, start)
	l.leakLocked(st, start)

	allowed := st.level+1 <= float64(l.cfg.Capacity)
	if allowed {
		st.level++
	}
	dec := Decision{
		Allow:     allowed,
		Remaining: int64(float64(l.cfg.Capacity) - st.level),
		ResetTime: start.Add(secondsToDuration(st.level / l.cfg.LeakRate)),
	}
	if !allowed {
		// Wait until the queue has drained below Capacity-1 so one more
		// unit fits.
		overflow := st.level + 1 - float64(l.cfg.Capacity)
		dec.RetryAfter = secondsToDuration(overflow / l.cfg.LeakRate)
	}
	l.mu.Unlock()

	l.record(dec, l.clock.Since(start))
	return dec, nil
}

// Level reports the identity's current queue depth, applying (and persisting)
// the same leak computation as AllowRequest without admitting anything. An
// identity that has never been seen reports zero.
func (l *LeakyBucket) Level(identity string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	st := l.stateLocked(identity, now)
	l.leakLocked(st, now)
	return st.level
}

func (l *LeakyBucket) stateLocked(identity string, now time.Time) *leakyBucketState {
	st, ok := l.states[identity]
	if !ok {
		st = &leakyBucketState{lastLeak: now}
		l.states[identity] = st
	}
	return st
}

func (l *LeakyBucket) leakLocked(st *leakyBucketState, now time.Time) {
	elapsed := now.Sub(st.lastLeak).Seconds()
	if elapsed > 0 {
		st.level = math.Max(0, st.level-l.cfg.LeakRate*elapsed)
	}
	st.lastLeak = now
}

func (l *LeakyBucket) record(dec Decision, elapsed time.Duration) {
	if dec.Allow {
		l.recorder.Add(MetricAllowed, 1, l.tags)
	} else {
		l.recorder.Add(MetricDenied, 1, l.tags)
	}
	l.recorder.Observe(MetricLatency, elapsed.Seconds(), l.tags)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
