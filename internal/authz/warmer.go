package authz

import (
	"context"
	"fmt"
)

// RoleLister enumerates the role ids whose action sets are worth keeping hot.
type RoleLister interface {
	ListActiveRoleIDs(ctx context.Context) ([]int64, error)
}

// Warmer re-resolves and caches the action sets of all active roles. It runs
// inside each replica after an invalidation because the cache is
// process-local; the first request per role after an edit then finds a warm
// entry instead of paying the rebuild.
type Warmer struct {
	cache  *GrantCache
	source GrantSource
	roles  RoleLister
}

// NewWarmer constructs a Warmer.
func NewWarmer(cache *GrantCache, source GrantSource, roles RoleLister) *Warmer {
	return &Warmer{cache: cache, source: source, roles: roles}
}

// Warm resolves every active role's action set and stores it. Each set is
// computed before the corresponding swap; the cache lock is never held
// across the database round-trip.
func (w *Warmer) Warm(ctx context.Context) error {
	ids, err := w.roles.ListActiveRoleIDs(ctx)
	if err != nil {
		return fmt.Errorf("authz: list roles for warmup: %w", err)
	}
	for _, id := range ids {
		set, err := w.source.ResolveActions(ctx, id)
		if err != nil {
			return fmt.Errorf("authz: resolve role %d for warmup: %w", id, err)
		}
		w.cache.Set(id, set)
	}
	return nil
}
