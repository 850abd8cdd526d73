package fetch

import "context"

// Resource binds one entity query to the cache and the executor. Load serves
// a fresh cache entry synchronously; otherwise the executor runs the fetch
// and its result populates the cache. Mutate applies an optimistic update
// without a round trip, for use after a local action is known to have
// succeeded server-side.
type Resource[T any] struct {
	exec *Executor
	key  string
	fn   func(context.Context) (T, error)
}

func NewResource[T any](exec *Executor, key string, fn func(context.Context) (T, error)) *Resource[T] {
	return &Resource[T]{exec: exec, key: key, fn: fn}
}

// Key returns the derived cache key for this resource.
func (r *Resource[T]) Key() string {
	return r.key
}

// Load returns the cached value when fresh, and fetches otherwise.
func (r *Resource[T]) Load(ctx context.Context) Result[T] {
	if v, ok := r.exec.cache.Get(r.key); ok {
		if data, ok := v.(T); ok {
			return Success(data)
		}
		// Key collision with a different type; treat as a miss.
	}
	return Execute(ctx, r.exec, r.fn, r.key)
}

// Refetch bypasses the cache read and always hits the backend; the result
// still replaces the cached entry.
func (r *Resource[T]) Refetch(ctx context.Context) Result[T] {
	return Execute(ctx, r.exec, r.fn, r.key)
}

// Mutate overwrites the cached value in place.
func (r *Resource[T]) Mutate(v T) {
	r.exec.cache.Set(r.key, v)
}
