package throttle

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ekefan/admit/pkg/backend"
	"github.com/ekefan/admit/pkg/clock"
)

// adjustmentCooldown is the minimum time between two rate adjustments,
// preventing oscillation when metrics arrive at a high cadence.
const adjustmentCooldown = 5 * time.Second

// adaptiveKeyPrefix scopes this throttle's counters inside a shared backend.
const adaptiveKeyPrefix = "adaptive:"

// LoadMetrics is the externally supplied load snapshot driving the adaptive
// control loop. The throttle never polls for it; a monitoring collaborator
// pushes it at whatever cadence it chooses.
type LoadMetrics struct {
	ErrorRate     float64 // fraction of failing requests, in [0, 1]
	LatencyMillis float64 // representative request latency
	Pressure      float64 // resource pressure, in [0, 1]
}

// AdaptiveConfig holds the construction-time parameters of an
// AdaptiveThrottle. The live rate always stays in [MinRate, MaxRate].
type AdaptiveConfig struct {
	MinRate     int64
	MaxRate     int64
	InitialRate int64
	// Window is the period the rate is measured over: at most <rate>
	// admissions per identity per Window.
	Window time.Duration
	// LowThreshold and HighThreshold bracket the stress score: below Low the
	// rate grows toward MaxRate, above High it shrinks toward MinRate.
	LowThreshold  float64
	HighThreshold float64
}

// Validate rejects configurations whose bounds or thresholds are incoherent.
func (c AdaptiveConfig) Validate() error {
	if c.MinRate <= 0 {
		return fmt.Errorf("%w: min rate must be positive, got %d", ErrInvalidConfig, c.MinRate)
	}
	if c.MinRate > c.MaxRate {
		return fmt.Errorf("%w: min rate %d exceeds max rate %d", ErrInvalidConfig, c.MinRate, c.MaxRate)
	}
	if c.InitialRate < c.MinRate || c.InitialRate > c.MaxRate {
		return fmt.Errorf("%w: initial rate %d outside [%d, %d]", ErrInvalidConfig, c.InitialRate, c.MinRate, c.MaxRate)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfig, c.Window)
	}
	if c.LowThreshold < 0 || c.HighThreshold > 1 || c.LowThreshold >= c.HighThreshold {
		return fmt.Errorf("%w: thresholds must satisfy 0 <= low < high <= 1, got low=%v high=%v",
			ErrInvalidConfig, c.LowThreshold, c.HighThreshold)
	}
	return nil
}

// AdaptiveThrottle is a rate-limiting admission check whose live rate is
// steered by externally reported load. Counting happens in a CounterBackend,
// so every process sharing the backend shares one budget per identity.
//
// Safe for concurrent use: metric updates and admission checks may race, and
// the published rate never leaves [MinRate, MaxRate].
type AdaptiveThrottle struct {
	cfg      AdaptiveConfig
	backend  backend.CounterBackend
	clock    clock.Clock
	recorder Recorder
	logger   zerolog.Logger
	tags     map[string]string

	mu          sync.Mutex
	rate        int64
	lastAdjust  time.Time
	lastMetrics LoadMetrics
}

// NewAdaptiveThrottle constructs an AdaptiveThrottle counting against the
// given backend, rejecting invalid configuration immediately.
func NewAdaptiveThrottle(cfg AdaptiveConfig, cb backend.CounterBackend, opts ...Option) (*AdaptiveThrottle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &AdaptiveThrottle{
		cfg:        cfg,
		backend:    cb,
		clock:      o.clock,
		recorder:   o.recorder,
		logger:     o.logger,
		tags:       map[string]string{"algorithm": "adaptive"},
		rate:       cfg.InitialRate,
		lastAdjust: o.clock.Now(),
	}, nil
}

// AllowRequest counts the request against the identity's window in the
// backend and admits it while the count stays within the current rate.
// A backend failure is returned as an error, distinct from a denial.
func (a *AdaptiveThrottle) AllowRequest(ctx context.Context, identity string) (Decision, error) {
	start := a.clock.Now()
	rate, window := a.CurrentRate()

	// The backend round trip happens outside the instance lock; only the
	// rate read above needs it.
	count, err := a.backend.Increment(ctx, adaptiveKeyPrefix+identity, window)
	if err != nil {
		return Decision{}, fmt.Errorf("adaptive throttle %q: %w", identity, err)
	}

	dec := Decision{
		Allow:     count <= rate,
		Remaining: max(0, rate-count),
		ResetTime: start.Add(window),
	}
	if !dec.Allow {
		dec.RetryAfter = window
	}

	a.record(dec, a.clock.Since(start))
	return dec, nil
}

// UpdateMetrics records the latest load snapshot and, if the cooldown since
// the previous adjustment has elapsed, steps the live rate toward MaxRate
// under low stress or toward MinRate under high stress. The new rate is
// clamped before it is published.
func (a *AdaptiveThrottle) UpdateMetrics(m LoadMetrics) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastMetrics = m
	now := a.clock.Now()
	if now.Sub(a.lastAdjust) < adjustmentCooldown {
		return
	}

	stress := stressScore(m)
	target := a.rate
	switch {
	case stress < a.cfg.LowThreshold:
		target = min(a.cfg.MaxRate, a.rate+a.stepSize())
	case stress > a.cfg.HighThreshold:
		target = max(a.cfg.MinRate, a.rate-a.stepSize())
	}
	if target == a.rate {
		return
	}

	a.logger.Info().
		Int64("old_rate", a.rate).
		Int64("new_rate", target).
		Float64("stress", stress).
		Dur("window", a.cfg.Window).
		Msg("adaptive rate adjusted")

	a.rate = target
	a.lastAdjust = now
}

// CurrentRate returns the live rate: at most count admissions per identity
// per window.
func (a *AdaptiveThrottle) CurrentRate() (count int64, window time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rate, a.cfg.Window
}

// LastMetrics returns the most recently reported load snapshot.
func (a *AdaptiveThrottle) LastMetrics() LoadMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastMetrics
}

// stepSize is 20% of the configured rate span, and at least 1 so the rate
// always moves when an adjustment is due.
func (a *AdaptiveThrottle) stepSize() int64 {
	step := (a.cfg.MaxRate - a.cfg.MinRate) / 5
	if step < 1 {
		step = 1
	}
	return step
}

func (a *AdaptiveThrottle) record(dec Decision, elapsed time.Duration) {
	if dec.Allow {
		a.recorder.Add(MetricAllowed, 1, a.tags)
	} else {
		a.recorder.Add(MetricDenied, 1, a.tags)
	}
	a.recorder.Observe(MetricLatency, elapsed.Seconds(), a.tags)
}

// stressScore blends the raw metrics into one scalar in [0, 1]. The blend is
// a monotonic weighted sum: error rate and pressure carry most of the weight,
// latency is normalized against a one-second budget. Only the direction and
// bounds of the resulting adjustment are contractual, not this formula.
func stressScore(m LoadMetrics) float64 {
	errRate := clamp01(m.ErrorRate)
	pressure := clamp01(m.Pressure)
	latency := clamp01(m.LatencyMillis / 1000)
	return 0.4*errRate + 0.4*pressure + 0.2*latency
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
