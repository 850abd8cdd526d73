// Package cache provides the expiring key-value store that backs the
// dashboard's read path, plus the declarative invalidation registry consulted
// by every mutation. Entries expire lazily: an entry older than the TTL is
// treated as absent on read and overwritten in place on the next Set.
package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultTTL is the staleness window applied when no TTL is configured.
const DefaultTTL = 30 * time.Second

type entry struct {
	value    interface{}
	storedAt time.Time
}

// Cache is an in-memory store of fetched results keyed by request identity.
// It is constructed once at startup and passed by reference to every
// consumer; there is no package-global instance.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default 30-second staleness window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock substitutes the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key, or ok=false when the key is absent
// or its entry has outlived the TTL. Expired entries are not removed here;
// they stay until overwritten or cleared.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, resetting its age.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate removes every entry whose key contains pattern as a substring
// and returns the number of entries removed.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.Contains(k, pattern) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
