package fetch

import (
	"context"
	"time"

	"github.com/neurodash/neurodash/internal/platform/cache"
	"github.com/neurodash/neurodash/internal/platform/session"
)

// DefaultTimeout is the budget a single fetch gets once the gate opens.
const DefaultTimeout = 5 * time.Second

// Executor runs fetch functions behind the authentication gate with a hard
// timeout. It always resolves: a hanging transport yields ErrTimeout rather
// than an indefinitely pending caller.
type Executor struct {
	gate    *session.Gate
	cache   *cache.Cache
	timeout time.Duration
	maxWait time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTimeout overrides the 5-second fetch budget.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// WithAuthWait overrides the gate's grace period.
func WithAuthWait(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.maxWait = d }
}

func NewExecutor(gate *session.Gate, c *cache.Cache, opts ...ExecutorOption) *Executor {
	e := &Executor{
		gate:    gate,
		cache:   c,
		timeout: DefaultTimeout,
		maxWait: session.DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache exposes the executor's cache so accessors and mutation services
// share one instance.
func (e *Executor) Cache() *cache.Cache {
	return e.cache
}

type outcome[T any] struct {
	data T
	err  error
}

// Execute gates on authentication, races fn against the timeout, and writes
// a successful value to the cache under cacheKey when one is given. fn
// receives a context that is cancelled when the budget expires; a fn that
// ignores it still cannot keep the caller pending.
func Execute[T any](ctx context.Context, e *Executor, fn func(context.Context) (T, error), cacheKey string) Result[T] {
	if !e.gate.WaitForAuth(ctx, e.maxWait) {
		return Failure[T](ErrUnauthenticated, "no active session")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		data, err := fn(fetchCtx)
		done <- outcome[T]{data: data, err: err}
	}()

	select {
	case <-fetchCtx.Done():
		return Failure[T](ErrTimeout, "request exceeded time budget")
	case out := <-done:
		if out.err != nil {
			return Failure[T](ErrRequestFailed, out.err.Error())
		}
		if cacheKey != "" && e.cache != nil {
			e.cache.Set(cacheKey, out.data)
		}
		return Success(out.data)
	}
}
