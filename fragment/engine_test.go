package fragment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/fragcache/cache"
)

// recordingCache is a cache.Cache that remembers the TTL of every write.
type recordingCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	ttls    map[string]time.Duration
	sets    int
	deletes int
	setErr  error
}

func newRecordingCache() *recordingCache {
	return &recordingCache{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *recordingCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *recordingCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.values[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *recordingCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.values, key)
	return nil
}

func (c *recordingCache) ttlFor(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttls[key]
}

// unavailableStore fails every call the way a dead database does.
type unavailableStore struct{ calls atomic.Int32 }

func (s *unavailableStore) GetOrCreate(context.Context, Identity) (Record, bool, error) {
	s.calls.Add(1)
	return Record{}, false, fmt.Errorf("%w: connection refused", ErrStoreUnavailable)
}

func (s *unavailableStore) Find(context.Context, Filter) ([]Record, error) {
	s.calls.Add(1)
	return nil, fmt.Errorf("%w: connection refused", ErrStoreUnavailable)
}

func (s *unavailableStore) Delete(context.Context, []Record) (int, error) {
	s.calls.Add(1)
	return 0, fmt.Errorf("%w: connection refused", ErrStoreUnavailable)
}

type fixture struct {
	engine *Engine
	store  *MemoryStore
	cache  *recordingCache
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := NewMemoryStore()
	c := newRecordingCache()
	caches := cache.NewRegistry()
	if err := caches.Register(cache.DefaultName, c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	e, err := NewEngine(store, NewRegistry(), caches, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return &fixture{engine: e, store: store, cache: c}
}

func counting(content string, calls *atomic.Int32) RenderFunc {
	return func(context.Context) (string, error) {
		calls.Add(1)
		return content, nil
	}
}

func TestEngine_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := Identity{Name: "navbar"}
	var renders atomic.Int32

	got, err := f.engine.Resolve(ctx, id, "1h", counting("<nav>...</nav>", &renders), "")
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if got != "<nav>...</nav>" || renders.Load() != 1 {
		t.Fatalf("first Resolve = %q after %d renders", got, renders.Load())
	}

	recs, _ := f.store.Find(ctx, Filter{Name: "navbar"})
	if len(recs) != 1 {
		t.Fatalf("store holds %d navbar records, want 1", len(recs))
	}
	key := recs[0].Key
	if ttl := f.cache.ttlFor(key); ttl != time.Hour {
		t.Errorf("cached with ttl %v, want 1h", ttl)
	}
	if canonical, _ := id.Canonical(); !registryHas(f.engine.Registry(), canonical, key) {
		t.Error("registry was not populated")
	}

	got, err = f.engine.Resolve(ctx, id, "1h", counting("<nav>fresh</nav>", &renders), "")
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if got != "<nav>...</nav>" || renders.Load() != 1 {
		t.Fatalf("second Resolve = %q after %d renders", got, renders.Load())
	}
}

func registryHas(r *Registry, canonical, key string) bool {
	got, ok := r.Get(canonical)
	return ok && got == key
}

func TestEngine_EmptyCachedValueIsHit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := Identity{Name: "banner"}

	key, err := f.engine.ResolveKey(ctx, id)
	if err != nil {
		t.Fatalf("ResolveKey: %v", err)
	}
	_ = f.cache.Set(ctx, key, []byte{}, time.Minute)

	var renders atomic.Int32
	got, err := f.engine.Resolve(ctx, id, 60, counting("rendered", &renders), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "" {
		t.Errorf("Resolve = %q, want empty string", got)
	}
	if renders.Load() != 0 {
		t.Errorf("render called %d times on an empty-value hit", renders.Load())
	}
}

func TestEngine_DeleteDoesNotEvict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := Identity{Name: "footer", Site: "1"}
	var renders atomic.Int32

	if _, err := f.engine.Resolve(ctx, id, "1d", counting("old", &renders), ""); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	recs, _ := f.store.Find(ctx, Filter{Name: "footer"})
	if n, err := f.store.Delete(ctx, recs); err != nil || n != 1 {
		t.Fatalf("Delete = (%d, %v)", n, err)
	}
	if f.cache.deletes != 0 {
		t.Fatalf("store delete touched the cache")
	}

	got, err := f.engine.Resolve(ctx, id, "1d", counting("new", &renders), "")
	if err != nil {
		t.Fatalf("Resolve after delete: %v", err)
	}
	if got != "old" {
		t.Errorf("Resolve after delete = %q, want stale %q", got, "old")
	}
	if renders.Load() != 1 {
		t.Errorf("renders = %d, want 1", renders.Load())
	}
}

func TestEngine_ConcurrentMissesEachRender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := Identity{Name: "hot", Tokens: []any{1}}

	const n = 8
	var (
		entered sync.WaitGroup
		done    sync.WaitGroup
		renders atomic.Int32
	)
	entered.Add(n)
	render := func(context.Context) (string, error) {
		renders.Add(1)
		entered.Done()
		entered.Wait() // every caller is rendering before any writes
		return "content", nil
	}

	errs := make(chan error, n)
	for range n {
		done.Add(1)
		go func() {
			defer done.Done()
			got, err := f.engine.Resolve(ctx, id, 30, render, "")
			if err == nil && got != "content" {
				err = fmt.Errorf("got %q", got)
			}
			errs <- err
		}()
	}
	done.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}

	if renders.Load() != n {
		t.Errorf("renders = %d, want %d", renders.Load(), n)
	}
	if f.cache.sets != n {
		t.Errorf("cache writes = %d, want %d", f.cache.sets, n)
	}
	if f.store.Len() != 1 {
		t.Errorf("store rows = %d, want 1", f.store.Len())
	}
}

func TestEngine_RenderErrorPropagatesAndIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("template: undefined variable")

	_, err := f.engine.Resolve(ctx, Identity{Name: "bad"}, "5m", func(context.Context) (string, error) {
		return "", boom
	}, "")
	if err != boom {
		t.Fatalf("err = %v, want the render error unchanged", err)
	}
	if f.cache.sets != 0 {
		t.Errorf("cache writes = %d, want 0", f.cache.sets)
	}
}

func TestEngine_ConfigurationErrors(t *testing.T) {
	ctx := context.Background()
	var renders atomic.Int32

	t.Run("bad ttl", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.Resolve(ctx, Identity{Name: "x"}, "bogus", counting("x", &renders), "")
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("err = %v, want ErrConfiguration", err)
		}
		if f.store.Len() != 0 {
			t.Error("record created for a misconfigured fragment")
		}
	})

	t.Run("no cache", func(t *testing.T) {
		e, err := NewEngine(NewMemoryStore(), nil, cache.NewRegistry())
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}
		_, err = e.Resolve(ctx, Identity{Name: "x"}, 60, counting("x", &renders), "sessions")
		if !errors.Is(err, ErrConfiguration) || !errors.Is(err, cache.ErrNotConfigured) {
			t.Fatalf("err = %v, want ErrConfiguration wrapping cache.ErrNotConfigured", err)
		}
	})

	if renders.Load() != 0 {
		t.Errorf("render called %d times", renders.Load())
	}
}

func TestEngine_InvalidIdentity(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Resolve(context.Background(), Identity{}, 60, nil, "")
	if !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("err = %v, want ErrInvalidIdentity", err)
	}
}

func TestEngine_PipedScopeIsRejectedBeforeStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	render := func(context.Context) (string, error) { return "secret-of-user-7|1", nil }
	if _, err := f.engine.Resolve(ctx, Identity{Name: "profile", User: "7|1"}, 60, render, ""); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("err = %v, want ErrInvalidIdentity", err)
	}
	if f.store.Len() != 0 {
		t.Errorf("store rows = %d, want 0", f.store.Len())
	}
}

func TestEngine_StoreUnavailable(t *testing.T) {
	caches := cache.NewRegistry()
	_ = caches.Register(cache.DefaultName, newRecordingCache())
	store := &unavailableStore{}
	e, _ := NewEngine(store, nil, caches)

	var renders atomic.Int32
	_, err := e.Resolve(context.Background(), Identity{Name: "x"}, 60, counting("x", &renders), "")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if renders.Load() != 0 {
		t.Error("rendered without an established identity")
	}
	if store.calls.Load() != 1 {
		t.Errorf("store calls = %d, want 1 (no retries)", store.calls.Load())
	}
}

func TestEngine_CacheSelection(t *testing.T) {
	ctx := context.Background()
	def := newRecordingCache()
	frags := newRecordingCache()
	named := newRecordingCache()
	caches := cache.NewRegistry()
	_ = caches.Register(cache.DefaultName, def)
	_ = caches.Register(cache.FragmentsName, frags)
	_ = caches.Register("long", named)
	e, _ := NewEngine(NewMemoryStore(), nil, caches)

	render := func(context.Context) (string, error) { return "v", nil }
	for _, tc := range []struct {
		cacheName string
		want      *recordingCache
	}{
		{"long", named},
		{"", frags},
		{"unknown", frags},
	} {
		before := tc.want.sets
		if _, err := e.Resolve(ctx, Identity{Name: "sel", Tokens: []any{tc.cacheName}}, 60, render, tc.cacheName); err != nil {
			t.Fatalf("Resolve(%q): %v", tc.cacheName, err)
		}
		if tc.want.sets != before+1 {
			t.Errorf("cache %q: write went elsewhere", tc.cacheName)
		}
	}
	if def.sets != 0 {
		t.Errorf("default cache used while fragments cache is registered")
	}
}

func TestEngine_TTLPolicy(t *testing.T) {
	f := newFixture(t, WithPolicy(cache.Policy{DefaultTTL: 2 * time.Minute, MaxTTL: time.Hour}))
	ctx := context.Background()
	render := func(context.Context) (string, error) { return "v", nil }

	tests := []struct {
		name string
		expr any
		want time.Duration
	}{
		{"absent", nil, 2 * time.Minute},
		{"empty string", "", 2 * time.Minute},
		{"seconds", 90, 90 * time.Second},
		{"numeric string", "120", 2 * time.Minute},
		{"composite", "2h-30m", time.Hour},
		{"duration", 10 * time.Second, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := Identity{Name: "ttl", Tokens: []any{tt.name}}
			if _, err := f.engine.Resolve(ctx, id, tt.expr, render, ""); err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			key, _ := id.Key()
			if got := f.cache.ttlFor(key); got != tt.want {
				t.Errorf("ttl = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngine_CacheWriteFailureStillReturnsContent(t *testing.T) {
	f := newFixture(t)
	f.cache.setErr = errors.New("redis: connection reset")

	got, err := f.engine.Resolve(context.Background(), Identity{Name: "x"}, 60, func(context.Context) (string, error) {
		return "content", nil
	}, "")
	if err != nil || got != "content" {
		t.Fatalf("Resolve = (%q, %v), want (content, nil)", got, err)
	}
}

func TestEngine_RegistrySkipsStore(t *testing.T) {
	ctx := context.Background()
	caches := cache.NewRegistry()
	_ = caches.Register(cache.DefaultName, newRecordingCache())

	registry := NewRegistry()
	id := Identity{Name: "warm"}
	canonical, _ := id.Canonical()
	key, _ := id.Key()
	registry.Put(canonical, key)

	store := &unavailableStore{}
	e, _ := NewEngine(store, registry, caches)
	got, err := e.Resolve(ctx, id, 60, func(context.Context) (string, error) { return "ok", nil }, "")
	if err != nil || got != "ok" {
		t.Fatalf("Resolve = (%q, %v)", got, err)
	}
	if store.calls.Load() != 0 {
		t.Errorf("store called %d times despite a registry hit", store.calls.Load())
	}
}

func TestNewEngine_Validation(t *testing.T) {
	if _, err := NewEngine(nil, nil, cache.NewRegistry()); !errors.Is(err, ErrNilStore) {
		t.Errorf("nil store: err = %v", err)
	}
	if _, err := NewEngine(NewMemoryStore(), nil, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("nil caches: err = %v", err)
	}
}

// slowStore blocks GetOrCreate until release is closed or ctx ends.
type slowStore struct {
	*MemoryStore
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (s *slowStore) GetOrCreate(ctx context.Context, id Identity) (Record, bool, error) {
	if s.calls.Add(1) == 1 {
		close(s.entered)
	}
	select {
	case <-ctx.Done():
		return Record{}, false, ctx.Err()
	case <-s.release:
	}
	return s.MemoryStore.GetOrCreate(ctx, id)
}

func TestEngine_ResolveKeyIgnoresOtherCallersCancellation(t *testing.T) {
	store := &slowStore{
		MemoryStore: NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	caches := cache.NewRegistry()
	_ = caches.Register(cache.DefaultName, newRecordingCache())
	e, err := NewEngine(store, nil, caches)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	id := Identity{Name: "navbar"}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := e.ResolveKey(ctxA, id)
		errA <- err
	}()
	<-store.entered

	type result struct {
		key string
		err error
	}
	resB := make(chan result, 1)
	go func() {
		key, err := e.ResolveKey(context.Background(), id)
		resB <- result{key, err}
	}()

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled caller: err = %v, want context.Canceled", err)
	}

	time.Sleep(10 * time.Millisecond)
	close(store.release)

	got := <-resB
	if got.err != nil {
		t.Fatalf("live caller: err = %v", got.err)
	}
	want, _ := id.Key()
	if got.key != want {
		t.Errorf("key = %q, want %q", got.key, want)
	}
	if store.calls.Load() != 1 {
		t.Errorf("store calls = %d, want 1", store.calls.Load())
	}
	if store.Len() != 1 {
		t.Errorf("store rows = %d, want 1", store.Len())
	}
}

func TestEngine_ResolveKeyHonorsOwnCancellation(t *testing.T) {
	store := &slowStore{
		MemoryStore: NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	defer close(store.release)
	caches := cache.NewRegistry()
	_ = caches.Register(cache.DefaultName, newRecordingCache())
	e, _ := NewEngine(store, nil, caches)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := e.ResolveKey(ctx, Identity{Name: "stuck"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}
