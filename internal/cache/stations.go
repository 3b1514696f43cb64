package cache

import (
	"sync"
	"time"

	"github.com/bbernstein/fuelreg/backend-go/internal/config"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
)

// StationCache holds the approved station list in process memory.
type StationCache struct {
	stations    []models.Station
	lastUpdated time.Time
	ttl         time.Duration
	clock       clock
	mu          sync.RWMutex
}

func NewStationCache(cfg *config.CacheConfig) *StationCache {
	return &StationCache{
		stations:    make([]models.Station, 0),
		lastUpdated: time.Time{}, // Zero time to ensure first fetch
		ttl:         cfg.GetStationListTTL(),
		clock:       systemClock{},
	}
}

// GetStations returns the cached list, or nil once it has expired or been invalidated.
func (c *StationCache) GetStations() []models.Station {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.isExpired() {
		return nil
	}
	return c.stations
}

func (c *StationCache) SetStations(stations []models.Station) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stations = stations
	c.lastUpdated = c.clock.Now()
}

// Invalidate forces the next GetStations to miss.
func (c *StationCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stations = make([]models.Station, 0)
	c.lastUpdated = time.Time{}
}

func (c *StationCache) isExpired() bool {
	return c.lastUpdated.IsZero() || c.clock.Now().Sub(c.lastUpdated) > c.ttl
}
