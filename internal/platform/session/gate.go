package session

import (
	"context"
	"time"
)

// DefaultMaxWait bounds how long a dependent fetch waits for session
// hydration before declaring the request unauthenticated.
const DefaultMaxWait = 2 * time.Second

// DefaultRetryInterval is the pause between session checks while waiting.
const DefaultRetryInterval = 50 * time.Millisecond

// Gate blocks dependent work until a valid session is observed or a deadline
// elapses. Session hydration on startup is asynchronous and indeterminate in
// duration; firing a data request before it completes would spuriously
// surface "unauthenticated" to the caller.
type Gate struct {
	provider Provider
	interval time.Duration
	now      func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithRetryInterval overrides the 50ms session re-check interval.
func WithRetryInterval(d time.Duration) GateOption {
	return func(g *Gate) { g.interval = d }
}

// WithGateClock substitutes the wall clock, for tests.
func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

func NewGate(provider Provider, opts ...GateOption) *Gate {
	g := &Gate{
		provider: provider,
		interval: DefaultRetryInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WaitForAuth returns true the instant a valid session is observed, checking
// immediately and then on the retry interval until maxWait elapses. It
// returns false on timeout or context cancellation. Failure is a signal, not
// an error: the caller decides how to surface it.
func (g *Gate) WaitForAuth(ctx context.Context, maxWait time.Duration) bool {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	if g.provider.Current(ctx).Valid(g.now()) {
		return true
	}

	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	tick := time.NewTicker(g.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
			if g.provider.Current(ctx).Valid(g.now()) {
				return true
			}
		}
	}
}
