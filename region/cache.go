package region

import "sync"

// Cache stores the most recently received inactive-region set per document.
// A later update fully replaces the earlier entry; entries are never merged.
// Entries survive mode changes and view closes and are removed only by
// Clear at shutdown.
type Cache struct {
	mu      sync.RWMutex
	regions map[DocumentKey]Set
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{regions: make(map[DocumentKey]Set)}
}

// Update replaces the entry for key with regions. The stored set is a copy,
// so the caller's slice may be reused.
func (c *Cache) Update(key DocumentKey, regions Set) {
	cp := make(Set, len(regions))
	copy(cp, regions)
	c.mu.Lock()
	c.regions[key] = cp
	c.mu.Unlock()
}

// Get returns the stored set for key, or an empty set if absent.
func (c *Cache) Get(key DocumentKey) Set {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.regions[key]; ok {
		return s
	}
	return Set{}
}

// Clear empties the cache. Used only at shutdown.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.regions = make(map[DocumentKey]Set)
	c.mu.Unlock()
}

// Keys returns the cached document keys, in no particular order.
func (c *Cache) Keys() []DocumentKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]DocumentKey, 0, len(c.regions))
	for k := range c.regions {
		keys = append(keys, k)
	}
	return keys
}
