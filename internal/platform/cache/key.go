package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Key derives a deterministic cache key from an entity type and query
// options. Option order is irrelevant: two queries with the same options
// always produce the same key, so they share an entry.
func Key(entity string, opts map[string]string) string {
	if len(opts) == 0 {
		return entity
	}
	parts := make([]string, 0, len(opts))
	for k, v := range opts {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(parts)
	return entity + "?" + strings.Join(parts, "&")
}
