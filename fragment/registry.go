package fragment

import "sync"

// Registry maps canonical identity forms to content-cache keys for the life
// of the process. Entries are never evicted: the key space is bounded by the
// distinct fragments actually rendered.
//
// Contract:
//   - Concurrency: safe for concurrent use; readers do not block each other.
//   - Put is last-write-wins.
type Registry struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: make(map[string]string)}
}

// Get returns the key remembered for canonical.
func (r *Registry) Get(canonical string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[canonical]
	return key, ok
}

// Put remembers key for canonical.
func (r *Registry) Put(canonical, key string) {
	r.mu.Lock()
	r.keys[canonical] = key
	r.mu.Unlock()
}

// Preload bulk-loads records. When site is non-empty only unscoped records
// and records of that site are loaded, so a key belonging to another site's
// same-named fragment is never resolved here. Records whose identity no
// longer validates are skipped. It returns the number of entries loaded.
func (r *Registry) Preload(records []Record, site string) int {
	entries := make(map[string]string, len(records))
	for _, rec := range records {
		if site != "" && rec.Site != "" && rec.Site != site {
			continue
		}
		canonical, err := rec.Identity().Canonical()
		if err != nil {
			continue
		}
		entries[canonical] = rec.Key
	}

	r.mu.Lock()
	for canonical, key := range entries {
		r.keys[canonical] = key
	}
	r.mu.Unlock()
	return len(entries)
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}
