package fragment

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/fragcache/observe"
)

// Find returns the records matching f.
func (e *Engine) Find(ctx context.Context, f Filter) ([]Record, error) {
	return e.store.Find(ctx, f)
}

// Clear evicts the content of every record matching f from every registered
// cache. Records and registry entries are kept, so the next resolution
// re-renders under the same key. It returns the affected records.
func (e *Engine) Clear(ctx context.Context, f Filter) ([]Record, error) {
	records, err := e.find(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := e.Evict(ctx, records); err != nil {
		return nil, err
	}
	e.logger.Info(ctx, "fragments cleared", observe.F("records", len(records)))
	return records, nil
}

// Purge evicts matching content and then deletes the records. It returns
// the number of records deleted.
func (e *Engine) Purge(ctx context.Context, f Filter) (int, error) {
	records, err := e.find(ctx, f)
	if err != nil {
		return 0, err
	}
	if err := e.Evict(ctx, records); err != nil {
		return 0, err
	}
	n, err := e.store.Delete(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("fragment: delete records: %w", err)
	}
	e.logger.Info(ctx, "fragments purged", observe.F("records", n))
	return n, nil
}

// Evict deletes each record's key from every registered cache.
func (e *Engine) Evict(ctx context.Context, records []Record) error {
	caches := e.caches.All()
	if len(records) == 0 || len(caches) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.evictConcurrency)
	for _, rec := range records {
		for _, c := range caches {
			g.Go(func() error {
				if err := c.Delete(ctx, rec.Key); err != nil {
					return fmt.Errorf("fragment: evict %s: %w", rec.Key, err)
				}
				return nil
			})
		}
	}
	return g.Wait()
}

func (e *Engine) find(ctx context.Context, f Filter) ([]Record, error) {
	if f.IsEmpty() && !f.All {
		return nil, ErrEmptyFilter
	}
	records, err := e.store.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("fragment: find records: %w", err)
	}
	return records, nil
}
