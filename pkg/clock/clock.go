// Package clock abstracts time so admission algorithms work with both real
// and controllable time. All time-dependent code in this module reads the
// current instant through a Clock instead of calling time.Now directly, which
// keeps algorithm behavior verifiable without real sleeps.
package clock

import "time"

// Clock provides the current instant.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
}

// RealClock delegates to the standard time package.
type RealClock struct{}

// NewRealClock constructs a RealClock.
func NewRealClock() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}
