package throttle

import "context"

// The wrappers in this file add identity-to-key derivation on top of one
// algorithm instance. They carry no admission logic of their own; their only
// contract is key isolation: distinct scopes and identities never share
// state, and traffic under one never consumes the budget of another.

// PerIPThrottle limits each client IP address independently.
type PerIPThrottle struct {
	inner Throttle
}

// NewPerIPThrottle wraps an algorithm instance with per-IP keying. The
// instance should not be shared with other wrappers, or their budgets merge.
func NewPerIPThrottle(inner Throttle) *PerIPThrottle {
	return &PerIPThrottle{inner: inner}
}

func (t *PerIPThrottle) AllowRequest(ctx context.Context, ip string) (Decision, error) {
	if ip == "" {
		ip = "unknown"
	}
	return t.inner.AllowRequest(ctx, ip)
}

// PerUserThrottle limits each user id independently. Requests without a user
// id all share one anonymous budget.
type PerUserThrottle struct {
	inner Throttle
}

// NewPerUserThrottle wraps an algorithm instance with per-user keying.
func NewPerUserThrottle(inner Throttle) *PerUserThrottle {
	return &PerUserThrottle{inner: inner}
}

func (t *PerUserThrottle) AllowRequest(ctx context.Context, userID string) (Decision, error) {
	if userID == "" {
		userID = "anonymous"
	}
	return t.inner.AllowRequest(ctx, userID)
}

// ScopedThrottle prefixes every identity with a named scope, formatted as
// "<scope>:<identity>", so several logical limits can share one algorithm
// instance or backend without colliding.
type ScopedThrottle struct {
	scope string
	inner Throttle
}

// NewScopedThrottle wraps an algorithm instance with scope-qualified keying.
func NewScopedThrottle(scope string, inner Throttle) *ScopedThrottle {
	return &ScopedThrottle{scope: scope, inner: inner}
}

func (t *ScopedThrottle) AllowRequest(ctx context.Context, identity string) (Decision, error) {
	return t.inner.AllowRequest(ctx, t.scope+":"+identity)
}
