package throttle

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidConfig reports a configuration rejected at construction time.
// Constructors never defer validation to call time.
var ErrInvalidConfig = errors.New("throttle: invalid configuration")

// Decision captures the outcome of one admission check. A denied admission is
// a normal negative outcome, not an error.
type Decision struct {
	Allow      bool
	Remaining  int64         // whole units of budget left after this decision
	RetryAfter time.Duration // approximate wait until a denied request could pass; 0 when allowed
	ResetTime  time.Time     // when the budget is expected to be fully restored
}

// Throttle is the admission contract implemented by every algorithm and
// key-scoped wrapper in this package, enabling uniform call sites.
//
// AllowRequest returns a non-nil error only for genuine failures such as an
// unreachable counter backend; callers must not conflate that with a denied
// Decision, since each warrants different behavior (retry vs reject).
//
// Implementations must be safe for concurrent use.
type Throttle interface {
	AllowRequest(ctx context.Context, identity string) (Decision, error)
}
