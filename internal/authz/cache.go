package authz

import "sync"

// GrantCache maps a role id to its resolved granted-action set. Entries never
// expire on their own; the only eviction path is Clear. The cache is owned by
// whoever constructs it so tests can build an isolated instance per case.
type GrantCache struct {
	mu     sync.RWMutex
	grants map[int64]map[string]struct{}
}

// NewGrantCache constructs an empty cache.
func NewGrantCache() *GrantCache {
	return &GrantCache{grants: make(map[int64]map[string]struct{})}
}

// Get returns the cached action set for a role. Callers must treat the
// returned set as read-only; Set always swaps in a freshly built map.
func (c *GrantCache) Get(roleID int64) (map[string]struct{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.grants[roleID]
	return set, ok
}

// Set stores the resolved action set for a role. The set is computed outside
// the lock; only the map swap happens under it.
func (c *GrantCache) Set(roleID int64, actions map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grants[roleID] = actions
}

// Clear drops every entry. Called after any grant or role mutation.
func (c *GrantCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grants = make(map[int64]map[string]struct{})
}

// Len reports the number of cached roles.
func (c *GrantCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.grants)
}
