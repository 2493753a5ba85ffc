package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket used to throttle watch-triggered runs.
// A nil Limiter allows everything.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter allows r events per second with bursts of b. A non-positive
// rate disables limiting.
func NewLimiter(r float64, b int) *Limiter {
	limit := rate.Limit(r)
	if r <= 0 {
		limit = rate.Inf
	}
	if b < 1 {
		b = 1
	}
	return &Limiter{inner: rate.NewLimiter(limit, b)}
}

// Allow consumes n tokens if they are available now.
func (l *Limiter) Allow(n int) bool {
	if l == nil {
		return true
	}
	return l.inner.AllowN(time.Now(), n)
}

// Delay is how long until one token is available again. It does not
// consume the token.
func (l *Limiter) Delay() time.Duration {
	if l == nil {
		return 0
	}
	now := time.Now()
	tokens := l.inner.TokensAt(now)
	if tokens >= 1 {
		return 0
	}
	limit := l.inner.Limit()
	if limit == rate.Inf || limit <= 0 {
		return 0
	}
	return time.Duration((1 - tokens) / float64(limit) * float64(time.Second))
}

// Wait blocks until n tokens are available or ctx ends.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l == nil {
		return ctx.Err()
	}
	return l.inner.WaitN(ctx, n)
}
