package postgres

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jonwraymond/fragcache/fragment"
)

// openTestStore connects to FRAGCACHE_TEST_DSN and empties the table.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("FRAGCACHE_TEST_DSN")
	if dsn == "" {
		t.Skip("FRAGCACHE_TEST_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)
	if _, err := s.pool.Exec(ctx, "TRUNCATE "+Table); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func TestIntegration_GetOrCreate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := fragment.Identity{Name: "navbar", Site: "1", Tokens: []any{"en", 2}}

	first, created, err := s.GetOrCreate(ctx, id)
	if err != nil || !created {
		t.Fatalf("first GetOrCreate = (%v, %v)", created, err)
	}
	second, created, err := s.GetOrCreate(ctx, id)
	if err != nil || created {
		t.Fatalf("second GetOrCreate = (%v, %v)", created, err)
	}
	if first.Key != second.Key || second.Site != "1" || second.User != "" {
		t.Fatalf("records differ: %+v vs %+v", first, second)
	}
}

func TestIntegration_ConcurrentCreate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := fragment.Identity{Name: "race"}

	const n = 16
	var wg sync.WaitGroup
	keys := make([]string, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, _, err := s.GetOrCreate(ctx, id)
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			keys[i] = rec.Key
		}()
	}
	wg.Wait()

	for i := range keys {
		if keys[i] != keys[0] {
			t.Fatalf("keys diverged: %v", keys)
		}
	}
	recs, err := s.Find(ctx, fragment.Filter{Name: "race"})
	if err != nil || len(recs) != 1 {
		t.Fatalf("Find = (%d records, %v), want 1", len(recs), err)
	}
}

func TestIntegration_FindAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, id := range []fragment.Identity{
		{Name: "navbar"},
		{Name: "navbar", Site: "1"},
		{Name: "navbar", Site: "2", Tokens: []any{"Sports", 3}},
		{Name: "footer", User: "9"},
	} {
		if _, _, err := s.GetOrCreate(ctx, id); err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
	}

	cases := []struct {
		name   string
		filter fragment.Filter
		want   int
	}{
		{"all", fragment.Filter{}, 4},
		{"name", fragment.Filter{Name: "navbar"}, 3},
		{"unscoped site", fragment.Filter{Name: "navbar", Site: fragment.Unscoped()}, 1},
		{"user", fragment.Filter{User: fragment.Scope("9")}, 1},
		{"token", fragment.Filter{Token: 3}, 1},
		{"token contains", fragment.Filter{TokenContains: "sport"}, 1},
	}
	for _, tc := range cases {
		recs, err := s.Find(ctx, tc.filter)
		if err != nil {
			t.Fatalf("%s: Find: %v", tc.name, err)
		}
		if len(recs) != tc.want {
			t.Errorf("%s: got %d records, want %d", tc.name, len(recs), tc.want)
		}
	}

	navbars, _ := s.Find(ctx, fragment.Filter{Name: "navbar"})
	n, err := s.Delete(ctx, navbars)
	if err != nil || n != 3 {
		t.Fatalf("Delete = (%d, %v), want 3", n, err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestIntegration_PreloadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := fragment.Identity{Name: "list", Tokens: []any{1.5, "x"}}
	rec, _, err := s.GetOrCreate(ctx, id)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	registry := fragment.NewRegistry()
	if _, err := fragment.Preload(ctx, s, registry, ""); err != nil {
		t.Fatalf("Preload: %v", err)
	}
	canonical, _ := id.Canonical()
	if key, ok := registry.Get(canonical); !ok || key != rec.Key {
		t.Fatalf("registry lookup = (%q, %v), want %q", key, ok, rec.Key)
	}
}
