package services

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/logger"
)

// InFlightCache is a bounded admission-control set of absolute file paths.
// A path admitted once cannot be admitted again until it is released or
// evicted by LRU pressure. Safe for concurrent use; no operation blocks.
type InFlightCache struct {
	entries  *lru.Cache[string, string]
	capacity int
}

// NewInFlightCache creates a cache sized by the configured byte budget.
func NewInFlightCache(cfg domain.CacheConfig) (*InFlightCache, error) {
	capacity := cfg.Capacity()
	entries, err := lru.New[string, string](capacity)
	if err != nil {
		return nil, err
	}
	return &InFlightCache{entries: entries, capacity: capacity}, nil
}

// TryAdmit records path and returns true if it was not already present.
func (c *InFlightCache) TryAdmit(path string) bool {
	present, evicted := c.entries.ContainsOrAdd(path, path)
	if present {
		return false
	}
	if evicted {
		// More files in flight than provisioned. The evicted file may be
		// admitted again and processed twice.
		logger.Warn("in-flight cache full (capacity %d): evicted oldest entry to admit %s", c.capacity, path)
	}
	return true
}

// Release removes path unconditionally.
func (c *InFlightCache) Release(path string) {
	c.entries.Remove(path)
}

// Contains reports whether path is currently admitted.
func (c *InFlightCache) Contains(path string) bool {
	return c.entries.Contains(path)
}

// Len returns the number of admitted paths.
func (c *InFlightCache) Len() int {
	return c.entries.Len()
}

// Capacity returns the maximum number of admitted paths.
func (c *InFlightCache) Capacity() int {
	return c.capacity
}
