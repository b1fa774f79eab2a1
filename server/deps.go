package server

import (
	"context"
	"fmt"

	"github.com/jonwraymond/fragcache/cache"
	"github.com/jonwraymond/fragcache/config"
	"github.com/jonwraymond/fragcache/fragment"
	"github.com/jonwraymond/fragcache/health"
	"github.com/jonwraymond/fragcache/observe"
	"github.com/jonwraymond/fragcache/store/postgres"
)

// Deps is an assembled deployment.
type Deps struct {
	Config   *config.Config
	Logger   observe.Logger
	Store    fragment.Store
	Caches   *cache.Registry
	Registry *fragment.Registry
	Engine   *fragment.Engine

	checks  []health.Checker
	closers []func()
}

// Build opens the store and caches described by cfg and creates the engine.
// mw may be nil. On error everything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, logger observe.Logger, mw *observe.Middleware) (*Deps, error) {
	if logger == nil {
		logger = observe.NopLogger()
	}
	d := &Deps{Config: cfg, Logger: logger, Registry: fragment.NewRegistry()}
	if err := d.build(ctx, mw); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Deps) build(ctx context.Context, mw *observe.Middleware) error {
	policy, err := d.Config.Policy()
	if err != nil {
		return err
	}
	if err := d.openStore(ctx); err != nil {
		return err
	}
	if err := d.openCaches(); err != nil {
		return err
	}
	d.checks = append(d.checks, health.RegistryCheck(d.Registry))

	opts := []fragment.Option{fragment.WithPolicy(policy), fragment.WithLogger(d.Logger)}
	if mw != nil {
		opts = append(opts, fragment.WithMiddleware(mw))
	}
	d.Engine, err = fragment.NewEngine(d.Store, d.Registry, d.Caches, opts...)
	return err
}

func (d *Deps) openStore(ctx context.Context) error {
	if d.Config.DatabaseURL == "" {
		mem := fragment.NewMemoryStore()
		d.Store = mem
		d.checks = append(d.checks, health.StoreCheck(mem))
		d.Logger.Warn(ctx, "no DATABASE_URL, fragment records are kept in memory")
		return nil
	}
	pg, err := postgres.Open(ctx, d.Config.DatabaseURL, postgres.Options{
		SkipMigrations: d.Config.DBSkipMigrations,
		MaxConns:       d.Config.DBMaxConns,
		Logger:         d.Logger,
	})
	if err != nil {
		return err
	}
	d.Store = pg
	d.closers = append(d.closers, pg.Close)
	d.checks = append(d.checks, health.StoreCheck(pg))
	if cb := pg.Breaker(); cb != nil {
		d.checks = append(d.checks, health.BreakerCheck("store", cb))
	}
	return nil
}

func (d *Deps) openCaches() error {
	var c cache.Cache
	switch d.Config.CacheBackend {
	case config.BackendMemory:
		c = cache.NewMemoryCache()
	case config.BackendRistretto:
		rc, err := cache.NewRistrettoCache(d.Config.RistrettoMaxCost)
		if err != nil {
			return fmt.Errorf("server: ristretto cache: %w", err)
		}
		d.closers = append(d.closers, rc.Close)
		c = rc
	case config.BackendRedis:
		rc := cache.NewRedisCache(d.Config.Redis())
		d.closers = append(d.closers, func() { _ = rc.Close() })
		c = rc
	default:
		return fmt.Errorf("%w: CACHE_BACKEND %q", config.ErrInvalid, d.Config.CacheBackend)
	}

	d.Caches = cache.NewRegistry()
	names := []string{cache.DefaultName}
	if n := d.Config.CacheName; n != "" && n != cache.DefaultName {
		names = append(names, n)
	}
	for _, name := range names {
		if err := d.Caches.Register(name, c); err != nil {
			return err
		}
	}
	d.checks = append(d.checks, health.CacheCheck(d.Config.CacheBackend, c))
	return nil
}

// Preload fills the identity registry for the configured site.
func (d *Deps) Preload(ctx context.Context) (int, error) {
	n, err := fragment.Preload(ctx, d.Store, d.Registry, d.Config.SiteID)
	if err != nil {
		return 0, err
	}
	d.Logger.Info(ctx, "identity registry preloaded",
		observe.F("entries", n), observe.F("site", d.Config.SiteID))
	return n, nil
}

// Health returns an aggregator over every opened dependency.
func (d *Deps) Health() *health.Aggregator {
	agg := health.NewAggregator(health.DefaultTimeout)
	for _, c := range d.checks {
		agg.Register(c)
	}
	return agg
}

// Close releases everything Build opened, in reverse order.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
