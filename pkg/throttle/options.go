package throttle

import (
	"github.com/rs/zerolog"

	"github.com/ekefan/admit/pkg/clock"
)

// Option configures a throttle at construction time.
type Option func(*options)

type options struct {
	clock    clock.Clock
	recorder Recorder
	logger   zerolog.Logger
}

func defaultOptions() options {
	return options{
		clock:    clock.NewRealClock(),
		recorder: NoopRecorder{},
		logger:   zerolog.Nop(),
	}
}

// WithClock injects the clock the throttle reads time from. Tests pass a
// clock.MockClock here so admission arithmetic is deterministic.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithRecorder injects a metrics backend (default: NoopRecorder).
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithLogger injects a logger (default: zerolog.Nop()). The adaptive throttle
// uses it to report rate adjustments.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
