package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/bbernstein/fuelreg/backend-go/internal/config"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStations() []models.Station {
	createdAt := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	return []models.Station{
		{
			ID:        "1",
			Name:      "Harbor Fuel",
			Latitude:  47.6062,
			Longitude: -122.3321,
			FuelTypes: []string{"diesel"},
			Photos:    []string{},
			Status:    models.StatusApproved,
			CreatedAt: createdAt,
		},
		{
			ID:        "2",
			Name:      "Ridge Fuel",
			Latitude:  47.6162,
			Longitude: -122.3322,
			FuelTypes: []string{"petrol", "diesel"},
			Photos:    []string{"photos/2.jpg"},
			Status:    models.StatusApproved,
			CreatedAt: createdAt,
		},
	}
}

func TestStationCacheGetSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stations []models.Station
		wantLen  int
	}{
		{
			name:     "empty list",
			stations: []models.Station{},
			wantLen:  0,
		},
		{
			name:     "single station",
			stations: createTestStations()[:1],
			wantLen:  1,
		},
		{
			name:     "multiple stations",
			stations: createTestStations(),
			wantLen:  2,
		},
	}

	for _, tt := range tests {
		tt := tt // capture range variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cache := NewStationCache(&config.CacheConfig{StationListTTLMinutes: 5})

			assert.Nil(t, cache.GetStations(), "unset cache must miss")

			cache.SetStations(tt.stations)
			got := cache.GetStations()

			require.NotNil(t, got)
			assert.Equal(t, tt.wantLen, len(got))
			assert.Equal(t, tt.stations, got)
		})
	}
}

func TestStationCacheExpiration(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	clock := &mockClock{now: now}
	cache := NewStationCache(&config.CacheConfig{StationListTTLMinutes: 5})
	cache.clock = clock

	cache.SetStations(createTestStations())
	require.NotNil(t, cache.GetStations())

	clock.now = now.Add(4 * time.Minute)
	assert.NotNil(t, cache.GetStations())

	clock.now = now.Add(6 * time.Minute)
	assert.Nil(t, cache.GetStations())
}

func TestStationCacheInvalidate(t *testing.T) {
	t.Parallel()

	cache := NewStationCache(&config.CacheConfig{StationListTTLMinutes: 5})
	cache.SetStations(createTestStations())

	cache.Invalidate()

	assert.Nil(t, cache.GetStations())
}

func TestConcurrentStationAccess(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrent test in short mode")
	}
	t.Parallel()

	cache := NewStationCache(&config.CacheConfig{StationListTTLMinutes: 5})

	const goroutines = 10
	const iterations = 100

	testStations := createTestStations()

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				switch {
				case i == 0 && j%10 == 0:
					cache.Invalidate()
				case j%2 == 0:
					cache.SetStations(testStations)
				default:
					if got := cache.GetStations(); got != nil {
						assert.Equal(t, testStations, got)
					}
				}
			}
		}(i)
	}

	wg.Wait()
}

func BenchmarkStationCache(b *testing.B) {
	cache := NewStationCache(&config.CacheConfig{StationListTTLMinutes: 5})
	testStations := createTestStations()

	b.Run("SetStations", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			cache.SetStations(testStations)
		}
	})

	b.Run("GetStations", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = cache.GetStations()
		}
	})
}
