package resolver

import (
	"sync"

	"drover/internal/dispatch"
)

// Cache maps normalized phrases to previously resolved action tokens. Entries
// live for the process lifetime; there is no eviction or expiry. Values may
// hold tokens outside the closed action set when the remote tier replied with
// one; the dispatcher guards membership at execution time.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]dispatch.Action
}

// NewCache returns an empty phrase cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]dispatch.Action)}
}

// Get returns the cached action for a normalized phrase.
func (c *Cache) Get(phrase string) (dispatch.Action, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	action, ok := c.entries[phrase]
	return action, ok
}

// Put stores a resolution. Last write wins; values for the same key are
// expected to be stable across tiers.
func (c *Cache) Put(phrase string, action dispatch.Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[phrase] = action
}

// Len reports the number of cached phrases.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
