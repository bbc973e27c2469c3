package shared

import (
	"fmt"
	"sync"
)

// Cache is an invocation-scoped store of computed values keyed by content
// hash. Create one per command run and hand it to the components that
// share results.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	once  sync.Once
	value any
	err   error
}

func NewCache() *Cache {
	return &Cache{entries: map[string]*cacheEntry{}}
}

// GetOrCreate returns the value stored under key, calling factory exactly
// once per key. Failed creations are not cached.
func GetOrCreate[T any](c *Cache, key string, factory func() (T, error)) (T, error) {
	if c == nil {
		return factory()
	}
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.value, entry.err = factory()
	})
	if entry.err != nil {
		c.mu.Lock()
		if c.entries[key] == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		var zero T
		return zero, entry.err
	}
	value, ok := entry.value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache entry %q holds %T", key, entry.value)
	}
	return value, nil
}

// Len reports the number of stored entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
