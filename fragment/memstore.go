package fragment

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore is an in-process Store. It enforces key uniqueness the way a
// relational store does: an insert of an existing key fails and the caller
// re-reads the winner.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// GetOrCreate implements Store.
func (s *MemoryStore) GetOrCreate(ctx context.Context, id Identity) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	rec, err := NewRecord(id)
	if err != nil {
		return Record{}, false, err
	}

	if existing, ok := s.get(rec.Key); ok {
		return existing, false, nil
	}
	err = s.Insert(ctx, rec)
	if errors.Is(err, ErrDuplicateKey) {
		existing, _ := s.get(rec.Key)
		return existing, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *MemoryStore) get(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Insert adds rec, failing with ErrDuplicateKey when its key exists.
func (s *MemoryStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.Key]; exists {
		return ErrDuplicateKey
	}
	s.records[rec.Key] = rec
	return nil
}

// Find implements Store.
func (s *MemoryStore) Find(ctx context.Context, f Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if f.Matches(rec) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sortRecords(out)
	return out, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, records []Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, rec := range records {
		if _, ok := s.records[rec.Key]; ok {
			delete(s.records, rec.Key)
			n++
		}
	}
	return n, nil
}

// Ping implements Pinger.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Pinger = (*MemoryStore)(nil)
)
