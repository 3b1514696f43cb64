package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bbernstein/fuelreg/backend-go/internal/geo"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
)

// MemoryStore keeps stations in process memory. Ids are sequential integers.
type MemoryStore struct {
	mu        sync.RWMutex
	stations  map[string]*models.Station
	locations map[string]string // location key -> station id, non-rejected only
	keys      map[string]string // station id -> location key
	nextID    int64
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stations:  make(map[string]*models.Station),
		locations: make(map[string]string),
		keys:      make(map[string]string),
		now:       time.Now,
	}
}

// Seed inserts stations with preassigned ids and statuses. Intended for tests and
// local development; it bypasses the location-key check.
func (s *MemoryStore) Seed(stations ...models.Station) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, station := range stations {
		station := station
		key := geo.LocationKey(station.Latitude, station.Longitude)
		s.stations[station.ID] = &station
		s.keys[station.ID] = key
		if station.Status != models.StatusRejected {
			s.locations[key] = station.ID
		}
		if id, err := strconv.ParseInt(station.ID, 10, 64); err == nil && id > s.nextID {
			s.nextID = id
		}
	}
}

func (s *MemoryStore) ListApproved(ctx context.Context, box *geo.BoundingBox) ([]models.ApprovedStation, error) {
	stations, err := s.List(ctx, models.ListFilter{
		Statuses: []models.Status{models.StatusApproved},
		Box:      box,
	})
	if err != nil {
		return nil, err
	}
	approved := make([]models.ApprovedStation, len(stations))
	for i, station := range stations {
		approved[i] = station.Comparable()
	}
	return approved, nil
}

func (s *MemoryStore) List(ctx context.Context, filter models.ListFilter) ([]models.Station, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Station, 0, len(s.stations))
	for _, station := range s.stations {
		if filter.Matches(*station) {
			result = append(result, copyStation(station))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return lessID(result[i].ID, result[j].ID)
	})
	return result, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Station, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	station, ok := s.stations[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := copyStation(station)
	return &c, nil
}

func (s *MemoryStore) Insert(ctx context.Context, record models.NormalizedRecord) (*models.Station, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := record.LocationKey
	if key == "" {
		key = geo.LocationKey(record.Latitude, record.Longitude)
	}
	if holder, taken := s.locations[key]; taken {
		return nil, NewLocationConflictError(key, holder)
	}

	s.nextID++
	id := strconv.FormatInt(s.nextID, 10)
	station := models.NewStation(id, record, s.now().UTC())

	s.stations[id] = &station
	s.keys[id] = key
	if station.Status != models.StatusRejected {
		s.locations[key] = id
	}

	c := copyStation(&station)
	return &c, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.Station, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	station, ok := s.stations[id]
	if !ok {
		return nil, ErrNotFound
	}

	key := s.keys[id]
	switch {
	case status == models.StatusRejected:
		if s.locations[key] == id {
			delete(s.locations, key)
		}
	case station.Status == models.StatusRejected:
		// Leaving rejected re-claims the location key.
		if holder, taken := s.locations[key]; taken && holder != id {
			return nil, NewLocationConflictError(key, holder)
		}
		s.locations[key] = id
	}

	station.Status = status
	c := copyStation(station)
	return &c, nil
}

func copyStation(s *models.Station) models.Station {
	c := *s
	c.FuelTypes = append([]string(nil), s.FuelTypes...)
	c.Photos = append([]string{}, s.Photos...)
	return c
}

// lessID orders numeric ids numerically and falls back to string order.
func lessID(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
