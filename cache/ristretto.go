package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// DefaultRistrettoBytes is the byte budget used when none is given.
const DefaultRistrettoBytes = 64 << 20

// Admission counters are sized for entries of about avgEntryBytes, ten per
// expected entry, within [minCounters, maxCounters].
const (
	avgEntryBytes = 1 << 10
	minCounters   = 1 << 10
	maxCounters   = 1 << 22
)

// RistrettoCache is an in-process cache backed by ristretto. An entry costs
// the length of its key plus its value, so maxBytes bounds stored content.
type RistrettoCache struct {
	rc *ristretto.Cache[string, []byte]
}

// NewRistrettoCache creates a ristretto cache holding about maxBytes of
// fragment content.
func NewRistrettoCache(maxBytes int64) (*RistrettoCache, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultRistrettoBytes
	}
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        numCounters(maxBytes),
		MaxCost:            maxBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoCache{rc: rc}, nil
}

// Get retrieves a copy of the value stored under key.
func (r *RistrettoCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := r.rc.Get(key)
	if !ok {
		return nil, false
	}
	return append([]byte{}, v...), true
}

// Set stores a copy of value. Writes are flushed before returning so a
// following Get observes them.
func (r *RistrettoCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.rc.SetWithTTL(key, append([]byte{}, value...), entryCost(key, value), ttl)
	r.rc.Wait()
	return nil
}

// Delete removes key.
func (r *RistrettoCache) Delete(_ context.Context, key string) error {
	r.rc.Del(key)
	return nil
}

// Close stops ristretto's background goroutines.
func (r *RistrettoCache) Close() {
	r.rc.Close()
}

var _ Cache = (*RistrettoCache)(nil)

func numCounters(maxBytes int64) int64 {
	return min(max(maxBytes/avgEntryBytes*10, minCounters), maxCounters)
}

func entryCost(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}
