package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bbernstein/fuelreg/backend-go/internal/config"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/hashicorp/golang-lru/v2"
)

// LRUCacheEntry wraps the cached data with metadata
type LRUCacheEntry struct {
	Data      models.Station
	ExpiresAt time.Time
}

// StationLRU caches stations by id with a per-entry TTL.
type StationLRU struct {
	lru    *lru.Cache[string, *LRUCacheEntry]
	ttl    time.Duration
	clock  clock
	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewStationLRU(cfg *config.CacheConfig) (*StationLRU, error) {
	lruCache, err := lru.New[string, *LRUCacheEntry](cfg.StationLRUSize)
	if err != nil {
		return nil, fmt.Errorf("creating LRU cache: %w", err)
	}

	return &StationLRU{
		lru:   lruCache,
		ttl:   cfg.GetStationLRUTTL(),
		clock: systemClock{},
	}, nil
}

// Get returns a copy of the cached station. Expired entries are removed.
func (c *StationLRU) Get(id string) (*models.Station, bool) {
	entry, ok := c.lru.Get(id)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if c.clock.Now().After(entry.ExpiresAt) {
		c.lru.Remove(id)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	station := entry.Data
	return &station, true
}

func (c *StationLRU) Add(station models.Station) {
	c.lru.Add(station.ID, &LRUCacheEntry{
		Data:      station,
		ExpiresAt: c.clock.Now().Add(c.ttl),
	})
}

func (c *StationLRU) Remove(id string) {
	c.lru.Remove(id)
}

// GetCacheStats returns statistics about cache hits and misses
func (c *StationLRU) GetCacheStats() map[string]uint64 {
	return map[string]uint64{
		"lru_hits":   c.hits.Load(),
		"lru_misses": c.misses.Load(),
	}
}

// Clear removes all entries from the LRU cache
func (c *StationLRU) Clear() {
	c.lru.Purge()
}
