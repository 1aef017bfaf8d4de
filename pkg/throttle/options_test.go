package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekefan/admit/pkg/clock"
)

func TestOptions_Defaults(t *testing.T) {
	o := defaultOptions()

	assert.IsType(t, &clock.RealClock{}, o.clock)
	assert.IsType(t, NoopRecorder{}, o.recorder)
}

func TestOptions_OverridesApply(t *testing.T) {
	mc := clock.NewMockClock(epoch)
	rec := newSpyRecorder()

	o := defaultOptions()
	for _, opt := range []Option{WithClock(mc), WithRecorder(rec)} {
		opt(&o)
	}

	assert.Same(t, mc, o.clock)
	assert.Same(t, rec, o.recorder)
}

// A throttle built with no options must work out of the box against the
// system clock.
func TestTokenBucket_DefaultOptions(t *testing.T) {
	tb, err := NewTokenBucket(TokenBucketConfig{
		Capacity:       1,
		RefillAmount:   1,
		RefillInterval: time.Hour,
	})
	require.NoError(t, err)

	dec, err := tb.AllowRequest(context.Background(), "user1")
	require.NoError(t, err)
	assert.True(t, dec.Allow)
}
