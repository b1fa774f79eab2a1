package fragment

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/fragcache/cache"
	"github.com/jonwraymond/fragcache/observe"
	"github.com/jonwraymond/fragcache/ttl"
)

// RenderFunc produces fragment content on a cache miss.
type RenderFunc func(ctx context.Context) (string, error)

// DefaultEvictConcurrency bounds parallel cache deletes in Clear and Purge.
const DefaultEvictConcurrency = 8

// DefaultKeyTimeout bounds a shared record lookup once it is detached from
// the caller that started it.
const DefaultKeyTimeout = 10 * time.Second

// Engine resolves fragments to content.
//
// Contract:
//   - Concurrency: safe for concurrent use. No lock is held across a store,
//     cache, or render call.
//   - Errors: see the package documentation. The engine never retries.
type Engine struct {
	store    Store
	registry *Registry
	caches   *cache.Registry
	policy   cache.Policy

	mw     *observe.Middleware
	logger observe.Logger

	evictConcurrency int
	keyTimeout       time.Duration
	keys             singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy sets the TTL policy. The default is cache.DefaultPolicy().
func WithPolicy(p cache.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithMiddleware instruments every resolution.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(e *Engine) {
		if mw != nil {
			e.mw = mw
		}
	}
}

// WithLogger sets the logger for non-resolution events.
func WithLogger(l observe.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEvictConcurrency bounds parallel cache deletes during invalidation.
func WithEvictConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.evictConcurrency = n
		}
	}
}

// WithKeyTimeout bounds the shared store call made on a registry miss.
func WithKeyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.keyTimeout = d
		}
	}
}

// NewEngine creates an engine. A nil registry is replaced by an empty one.
func NewEngine(store Store, registry *Registry, caches *cache.Registry, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if caches == nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, cache.ErrNotConfigured)
	}
	if registry == nil {
		registry = NewRegistry()
	}
	e := &Engine{
		store:            store,
		registry:         registry,
		caches:           caches,
		policy:           cache.DefaultPolicy(),
		mw:               observe.NopMiddleware(),
		logger:           observe.NopLogger(),
		evictConcurrency: DefaultEvictConcurrency,
		keyTimeout:       DefaultKeyTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Registry returns the engine's identity registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Store returns the engine's record store.
func (e *Engine) Store() Store { return e.store }

// Resolve returns the content for id, rendering and caching it on a miss.
// ttlExpr is anything ttl.Resolve accepts; nil or "" selects the policy's
// default TTL. cacheName selects a content cache, falling back to the
// "fragments" and then the "default" cache.
func (e *Engine) Resolve(ctx context.Context, id Identity, ttlExpr any, render RenderFunc, cacheName string) (string, error) {
	meta := observe.FragmentMeta{
		Name:       id.Name,
		Cache:      cacheName,
		Site:       id.Site,
		UserScoped: id.User != "",
		Tokens:     len(id.Tokens),
	}
	resolve := e.mw.Wrap(func(ctx context.Context, _ observe.FragmentMeta) (string, observe.Outcome, error) {
		return e.resolve(ctx, id, ttlExpr, render, cacheName)
	})
	content, _, err := resolve(ctx, meta)
	return content, err
}

func (e *Engine) resolve(ctx context.Context, id Identity, ttlExpr any, render RenderFunc, cacheName string) (string, observe.Outcome, error) {
	canonical, err := id.Canonical()
	if err != nil {
		return "", observe.OutcomeMiss, err
	}
	ttl, err := e.ttl(ttlExpr)
	if err != nil {
		return "", observe.OutcomeMiss, err
	}
	c, _, err := e.caches.Lookup(cacheName)
	if err != nil {
		return "", observe.OutcomeMiss, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	key, err := e.resolveKey(ctx, id, canonical)
	if err != nil {
		return "", observe.OutcomeMiss, err
	}

	if value, ok := c.Get(ctx, key); ok {
		return string(value), observe.OutcomeHit, nil
	}

	content, err := render(ctx)
	if err != nil {
		return "", observe.OutcomeMiss, err
	}
	if err := c.Set(ctx, key, []byte(content), ttl); err != nil {
		e.logger.Warn(ctx, "fragment cache write failed",
			observe.F("fragment.name", id.Name),
			observe.F("key", key),
			observe.F("error", err),
		)
	}
	return content, observe.OutcomeMiss, nil
}

// ResolveKey returns the content-cache key for id, creating its record if
// needed. Concurrent misses for one identity share a single store call.
func (e *Engine) ResolveKey(ctx context.Context, id Identity) (string, error) {
	canonical, err := id.Canonical()
	if err != nil {
		return "", err
	}
	return e.resolveKey(ctx, id, canonical)
}

func (e *Engine) resolveKey(ctx context.Context, id Identity, canonical string) (string, error) {
	if key, ok := e.registry.Get(canonical); ok {
		return key, nil
	}

	// The shared call outlives any single caller; each waiter still honors
	// its own cancellation.
	ch := e.keys.DoChan(canonical, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.keyTimeout)
		defer cancel()
		rec, created, err := e.store.GetOrCreate(sctx, id)
		if err != nil {
			return "", err
		}
		e.registry.Put(canonical, rec.Key)
		if created {
			meta := observe.FragmentMeta{Name: rec.Name, Site: rec.Site, UserScoped: rec.User != ""}
			e.mw.Metrics().RecordCreated(sctx, meta)
			e.logger.Debug(sctx, "fragment record created",
				observe.F("fragment.name", rec.Name),
				observe.F("key", rec.Key),
			)
		}
		return rec.Key, nil
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("fragment: resolve key for %q: %w", id.Name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", fmt.Errorf("fragment: resolve key for %q: %w", id.Name, res.Err)
		}
		return res.Val.(string), nil
	}
}

func (e *Engine) ttl(expr any) (time.Duration, error) {
	if expr == nil {
		return e.policy.EffectiveTTL(0, true), nil
	}
	if s, ok := expr.(string); ok && s == "" {
		return e.policy.EffectiveTTL(0, true), nil
	}
	d, err := ttl.Duration(expr)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return e.policy.EffectiveTTL(d, false), nil
}
