package cache

import (
	"fmt"
	"sort"
	"sync"
)

// Well-known cache names.
const (
	// FragmentsName is the cache used for fragments when no name is given.
	FragmentsName = "fragments"

	// DefaultName is the last-resort cache.
	DefaultName = "default"
)

// Registry holds named caches.
//
// Lookup order for a requested name is: the name itself, then
// FragmentsName, then DefaultName. Only when none of these is registered
// does Lookup fail with ErrNotConfigured.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]Cache
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{caches: make(map[string]Cache)}
}

// Register adds or replaces a named cache.
func (r *Registry) Register(name string, c Cache) error {
	if c == nil {
		return ErrNilCache
	}
	r.mu.Lock()
	r.caches[name] = c
	r.mu.Unlock()
	return nil
}

// Lookup selects a cache for name, applying the fallback order. The
// returned string is the name of the cache actually selected.
func (r *Registry) Lookup(name string) (Cache, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, candidate := range []string{name, FragmentsName, DefaultName} {
		if candidate == "" {
			continue
		}
		if c, ok := r.caches[candidate]; ok {
			return c, candidate, nil
		}
	}
	if name == "" {
		return nil, "", ErrNotConfigured
	}
	return nil, "", fmt.Errorf("%w: %q has no fallback", ErrNotConfigured, name)
}

// Names returns the registered cache names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.caches))
	for name := range r.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns each distinct registered cache once, even when it is
// registered under several names.
func (r *Registry) All() []Cache {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.caches))
	for name := range r.caches {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[Cache]struct{}, len(names))
	out := make([]Cache, 0, len(names))
	for _, name := range names {
		c := r.caches[name]
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
