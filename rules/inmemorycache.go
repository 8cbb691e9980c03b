package rules

import (
	"sync"
	"time"
)

// InMemoryTablesCache is a simple in-memory implementation of TablesCache
// Thread-safe for concurrent access
type InMemoryTablesCache struct {
	defs     []*TableDefinition
	cachedAt time.Time
	config   CacheConfig
	mu       sync.RWMutex
	isValid  bool
	now      func() time.Time
}

// NewInMemoryTablesCache creates a new in-memory tables cache
func NewInMemoryTablesCache(config CacheConfig) *InMemoryTablesCache {
	return &InMemoryTablesCache{
		config: config,
		now:    time.Now,
	}
}

// Get retrieves cached definitions
// Returns nil if cache is invalid or expired
func (c *InMemoryTablesCache) Get() []*TableDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.validLocked() {
		return nil
	}

	// Return copy to prevent external modifications
	defsCopy := make([]*TableDefinition, len(c.defs))
	copy(defsCopy, c.defs)
	return defsCopy
}

// Set stores definitions in cache
func (c *InMemoryTablesCache) Set(defs []*TableDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.defs = make([]*TableDefinition, len(defs))
	copy(c.defs, defs)
	c.cachedAt = c.now()
	c.isValid = true
}

// Invalidate clears the cache
func (c *InMemoryTablesCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isValid = false
	c.defs = nil
}

// IsValid returns true if cache contains valid data
func (c *InMemoryTablesCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.validLocked()
}

func (c *InMemoryTablesCache) validLocked() bool {
	if !c.isValid {
		return false
	}
	if c.config.TTL > 0 {
		return c.now().Sub(c.cachedAt) <= c.config.TTL
	}
	return true
}
