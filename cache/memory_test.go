package cache

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Fatal("Get on empty cache should miss")
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok := c.Get(ctx, "k")
	if !ok || !bytes.Equal(got, []byte("v")) {
		t.Fatalf("Get = %q, %v; want %q, true", got, ok, "v")
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("Get after Delete should miss")
	}
	if err := c.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete of missing key should not error, got %v", err)
	}
}

func TestMemoryCache_EmptyValueIsHit(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	for _, v := range [][]byte{nil, {}} {
		if err := c.Set(ctx, "empty", v, time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, ok := c.Get(ctx, "empty")
		if !ok {
			t.Fatalf("Get of stored empty value (%#v) should hit", v)
		}
		if len(got) != 0 {
			t.Errorf("Get = %q, want empty", got)
		}
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Hour)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("entry should be live before expiry")
	}

	now = now.Add(time.Hour)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("entry should expire at its deadline")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be swept on access, Len = %d", c.Len())
	}
}

func TestMemoryCache_NonPositiveTTLSkipsWrite(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_ = c.Set(ctx, "zero", []byte("v"), 0)
	_ = c.Set(ctx, "negative", []byte("v"), -time.Second)
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				switch j % 3 {
				case 0:
					_ = c.Set(ctx, "shared", []byte("v"), time.Minute)
				case 1:
					_, _ = c.Get(ctx, "shared")
				case 2:
					_ = c.Delete(ctx, "shared")
				}
			}
		}(i)
	}
	wg.Wait()
}
