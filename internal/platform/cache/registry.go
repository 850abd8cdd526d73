package cache

// Registry maps an entity type to the cache key patterns and fixed keys that
// a successful write against that entity could have staled. Mutation services
// consult it instead of issuing ad hoc invalidation calls, so a new entity
// only needs one table entry to be covered everywhere.
type Registry struct {
	patterns map[string][]string
	keys     map[string][]string
}

// Rule declares the invalidation footprint of one entity type.
type Rule struct {
	Entity   string
	Patterns []string // substring patterns removed from the cache
	Keys     []string // fixed keys removed verbatim
}

func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{
		patterns: make(map[string][]string),
		keys:     make(map[string][]string),
	}
	for _, rule := range rules {
		r.patterns[rule.Entity] = append(r.patterns[rule.Entity], rule.Patterns...)
		r.keys[rule.Entity] = append(r.keys[rule.Entity], rule.Keys...)
	}
	return r
}

// InvalidateFor applies the registered footprint of entity against c and
// returns the number of entries removed. Unknown entities are a no-op rather
// than an error: a mutation against an unregistered entity simply cannot
// stale any cached read.
func (r *Registry) InvalidateFor(c *Cache, entity string) int {
	n := 0
	for _, p := range r.patterns[entity] {
		n += c.Invalidate(p)
	}
	for _, k := range r.keys[entity] {
		n += c.Invalidate(k)
	}
	return n
}

// DefaultRegistry declares the invalidation footprint for every entity the
// dashboard mutates.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Rule{Entity: "session", Patterns: []string{"sessions", "predictions"}, Keys: []string{"my-sessions"}},
		Rule{Entity: "patient", Patterns: []string{"patients", "stats"}},
		Rule{Entity: "doctor", Patterns: []string{"doctors", "patients", "stats"}},
		Rule{Entity: "user", Patterns: []string{"users"}},
	)
}
