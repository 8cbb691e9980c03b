package rules

import "time"

// TablesCache provides an abstraction for caching the active table list
// This allows swapping between in-memory, Redis, or other caching implementations
type TablesCache interface {
	// Get retrieves cached definitions, returns nil if cache miss or expired
	Get() []*TableDefinition

	// Set stores definitions in cache
	Set(defs []*TableDefinition)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries
	// Set to 0 for no expiration (manual invalidation only)
	TTL time.Duration
}

// DefaultCacheConfig returns the default caching behaviour: no TTL,
// invalidated only on mutations
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 0,
	}
}
