package authz

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/vantage-ops/vantage/internal/observability"
)

// GrantSource resolves a role's full action set from persistent storage. An
// unknown role resolves to an empty set, never an error.
type GrantSource interface {
	ResolveActions(ctx context.Context, roleID int64) (map[string]struct{}, error)
}

// Evaluator answers capability checks against the grant cache, falling back
// to the grant source on miss. It sits on the hot path of every protected
// request; the database round-trip on miss is collapsed per role so
// concurrent first requests after an invalidation rebuild the entry once.
type Evaluator struct {
	cache   *GrantCache
	source  GrantSource
	metrics *observability.Metrics
	group   singleflight.Group
}

// NewEvaluator constructs an Evaluator. metrics may be nil.
func NewEvaluator(cache *GrantCache, source GrantSource, metrics *observability.Metrics) *Evaluator {
	return &Evaluator{cache: cache, source: source, metrics: metrics}
}

// Check reports whether the role has the required action granted. The
// required action must already be in normalized form; protected endpoints
// bind it statically at wiring time. A role that no longer exists yields
// false, never an error.
func (e *Evaluator) Check(ctx context.Context, roleID int64, required string) (bool, error) {
	if set, ok := e.cache.Get(roleID); ok {
		e.metrics.ObserveGrantCache("hit")
		return e.allowed(set, required), nil
	}
	e.metrics.ObserveGrantCache("miss")

	set, err := e.resolve(ctx, roleID)
	if err != nil {
		return false, err
	}
	return e.allowed(set, required), nil
}

// Warm pre-resolves and caches the action set for a role.
func (e *Evaluator) Warm(ctx context.Context, roleID int64) error {
	_, err := e.resolve(ctx, roleID)
	return err
}

func (e *Evaluator) allowed(set map[string]struct{}, required string) bool {
	_, ok := set[required]
	e.metrics.ObserveCapabilityCheck(ok)
	return ok
}

// resolve rebuilds the cache entry for a role, collapsing concurrent
// rebuilds for the same role into a single grant-source call.
func (e *Evaluator) resolve(ctx context.Context, roleID int64) (map[string]struct{}, error) {
	resultChan := e.group.DoChan(strconv.FormatInt(roleID, 10), func() (interface{}, error) {
		if set, ok := e.cache.Get(roleID); ok {
			return set, nil
		}
		set, err := e.source.ResolveActions(ctx, roleID)
		if err != nil {
			return nil, err
		}
		e.cache.Set(roleID, set)
		return set, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]struct{}), nil
	}
}
