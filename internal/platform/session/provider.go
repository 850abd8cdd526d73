package session

import (
	"context"
	"sync"
)

// Holder is a Provider hydrated asynchronously by whatever flow obtains the
// session token. Current returns nil until Set is called.
type Holder struct {
	mu      sync.RWMutex
	current *Session
}

func NewHolder() *Holder {
	return &Holder{}
}

func (h *Holder) Set(s *Session) {
	h.mu.Lock()
	h.current = s
	h.mu.Unlock()
}

func (h *Holder) Clear() {
	h.Set(nil)
}

func (h *Holder) Current(_ context.Context) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// ContextProvider reads the session the auth middleware attached to the
// request context. Used by the server wiring, where hydration is a
// per-request concern.
type ContextProvider struct{}

func (ContextProvider) Current(ctx context.Context) *Session {
	return FromContext(ctx)
}
