package station

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bbernstein/fuelreg/backend-go/internal/cache"
	"github.com/bbernstein/fuelreg/backend-go/internal/config"
	"github.com/bbernstein/fuelreg/backend-go/internal/geo"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	DefaultNearbyLimit = 5
	MaxNearbyLimit     = 100

	defaultWorkerCount = 4
)

// ErrInvalidCoordinates is returned for a search origin outside the valid ranges.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// StationFinder answers read queries. By-id lookups go through an LRU; nearby searches run
// over the approved list, cached in memory and optionally as an S3 snapshot.
type StationFinder struct {
	store      models.StationStore
	memCache   *cache.StationCache
	s3Cache    cache.StationListCacheProvider
	lru        *cache.StationLRU
	workers    int
	cacheMutex sync.RWMutex
	// generation is bumped by Invalidate; guarded by cacheMutex.
	generation uint64
}

var _ models.StationFinder = (*StationFinder)(nil)

type Option func(*StationFinder)

func WithS3Cache(provider cache.StationListCacheProvider) Option {
	return func(f *StationFinder) {
		f.s3Cache = provider
	}
}

func WithLRU(lru *cache.StationLRU) Option {
	return func(f *StationFinder) {
		f.lru = lru
	}
}

func WithWorkers(n int) Option {
	return func(f *StationFinder) {
		if n > 0 {
			f.workers = n
		}
	}
}

func NewStationFinder(store models.StationStore, memCache *cache.StationCache, opts ...Option) *StationFinder {
	if memCache == nil {
		memCache = cache.NewStationCache(config.GetCacheConfig())
	}

	f := &StationFinder{
		store:    store,
		memCache: memCache,
		workers:  defaultWorkerCount,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *StationFinder) FindStation(ctx context.Context, stationID string) (*models.Station, error) {
	if f.lru != nil {
		if station, ok := f.lru.Get(stationID); ok {
			log.Trace().Str("station_id", stationID).Msg("LRU HIT for station")
			return station, nil
		}
	}

	station, err := f.store.Get(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("finding station %s: %w", stationID, err)
	}

	if f.lru != nil {
		f.lru.Add(*station)
	}
	return station, nil
}

// FindNearestStations returns up to limit approved stations ordered by distance from
// (lat, lon), each with Distance set in km.
func (f *StationFinder) FindNearestStations(ctx context.Context, lat, lon float64, limit int) ([]models.Station, error) {
	if !geo.ValidLatitude(lat) || !geo.ValidLongitude(lon) {
		return nil, fmt.Errorf("%w: %f,%f", ErrInvalidCoordinates, lat, lon)
	}
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}
	if limit > MaxNearbyLimit {
		limit = MaxNearbyLimit
	}

	stations, err := f.getStationList(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting station list: %w", err)
	}

	// Calculate distances in parallel using worker pool
	work := make(chan models.Station, len(stations))
	results := make(chan models.Station, len(stations))

	var wg sync.WaitGroup
	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for station := range work {
				station.Distance = geo.DistanceKm(lat, lon, station.Latitude, station.Longitude)
				results <- station
			}
		}()
	}

	for _, station := range stations {
		work <- station
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	stationsWithDistance := make([]models.Station, 0, len(stations))
	for station := range results {
		stationsWithDistance = append(stationsWithDistance, station)
	}

	sort.Slice(stationsWithDistance, func(i, j int) bool {
		if stationsWithDistance[i].Distance != stationsWithDistance[j].Distance {
			return stationsWithDistance[i].Distance < stationsWithDistance[j].Distance
		}
		return stationsWithDistance[i].ID < stationsWithDistance[j].ID
	})

	if len(stationsWithDistance) > limit {
		stationsWithDistance = stationsWithDistance[:limit]
	}

	return stationsWithDistance, nil
}

// Invalidate drops cached copies after a station changed.
func (f *StationFinder) Invalidate(ctx context.Context, stationID string) {
	if f.lru != nil {
		f.lru.Remove(stationID)
	}

	f.cacheMutex.Lock()
	f.generation++
	f.memCache.Invalidate()
	f.cacheMutex.Unlock()

	if f.s3Cache != nil {
		if err := f.s3Cache.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Str("station_id", stationID).Msg("Failed to invalidate S3 station snapshot")
		}
	}
}

func (f *StationFinder) getStationList(ctx context.Context) ([]models.Station, error) {
	// Check memory cache first
	f.cacheMutex.RLock()
	stations := f.memCache.GetStations()
	generation := f.generation
	f.cacheMutex.RUnlock()

	if stations != nil {
		log.Debug().Msg("Memory cache HIT for station list")
		return stations, nil
	}

	// Check S3 cache if available
	if f.s3Cache != nil {
		stations, err := f.s3Cache.GetStations(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Error getting stations from S3 cache")
		} else if stations != nil {
			log.Debug().Msg("S3 cache HIT for station list")
			f.storeInMemory(stations, generation)
			return stations, nil
		}
	}

	log.Debug().Msg("Cache MISS for station list, reading approved stations from store")

	stations, err := f.store.List(ctx, models.ListFilter{
		Statuses: []models.Status{models.StatusApproved},
	})
	if err != nil {
		return nil, fmt.Errorf("listing approved stations: %w", err)
	}
	if stations == nil {
		stations = []models.Station{}
	}

	if f.s3Cache != nil && f.currentGeneration() == generation {
		if err := f.s3Cache.SaveStations(ctx, stations); err != nil {
			log.Error().Err(err).Msg("Failed to save stations to S3 cache")
		}
		// An invalidation may have landed while the snapshot was being written.
		if f.currentGeneration() != generation {
			if err := f.s3Cache.Invalidate(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to drop stale S3 station snapshot")
			}
		}
	}

	f.storeInMemory(stations, generation)

	return stations, nil
}

func (f *StationFinder) currentGeneration() uint64 {
	f.cacheMutex.RLock()
	defer f.cacheMutex.RUnlock()
	return f.generation
}

// storeInMemory caches stations unless an invalidation happened after they were read.
func (f *StationFinder) storeInMemory(stations []models.Station, generation uint64) {
	f.cacheMutex.Lock()
	defer f.cacheMutex.Unlock()
	if f.generation != generation {
		log.Debug().Msg("Station list changed during refresh, not caching")
		return
	}
	f.memCache.SetStations(stations)
}
