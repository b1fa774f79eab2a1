package fragment

import (
	"context"
	"fmt"
)

// Preload fills registry from store at startup. When site is non-empty only
// unscoped records and that site's records are loaded. It returns the number
// of registry entries loaded.
func Preload(ctx context.Context, store Store, registry *Registry, site string) (int, error) {
	records, err := store.Find(ctx, Filter{All: true})
	if err != nil {
		return 0, fmt.Errorf("fragment: preload: %w", err)
	}
	return registry.Preload(records, site), nil
}
