package store

import (
	"context"
	"errors"
	"testing"

	"github.com/bbernstein/fuelreg/backend-go/internal/geo"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestRecord(lat, lon float64) models.NormalizedRecord {
	return models.NormalizedRecord{
		Name:          "Harbor Fuel",
		Owner:         "Jordan Doe",
		Email:         "owner@example.com",
		Phone:         "+1 555 0100",
		Address:       "1 Dock St",
		Latitude:      lat,
		Longitude:     lon,
		FuelTypes:     []string{"diesel"},
		Photos:        []string{"photos/1.jpg"},
		FuelTypesJSON: `["diesel"]`,
		PhotosJSON:    `["photos/1.jpg"]`,
		Status:        models.StatusPending,
		LocationKey:   geo.LocationKey(lat, lon),
	}
}

func TestMemoryStoreInsertAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.Insert(ctx, createTestRecord(40.0, -74.0))
	require.NoError(t, err)
	second, err := s.Insert(ctx, createTestRecord(41.0, -74.0))
	require.NoError(t, err)

	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "2", second.ID)

	got, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	// Returned values are copies.
	got.FuelTypes[0] = "changed"
	again, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"diesel"}, again.FuelTypes)

	_, err = s.Get(ctx, "99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreLocationConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Insert(ctx, createTestRecord(40.0, -74.0))
	require.NoError(t, err)

	_, err = s.Insert(ctx, createTestRecord(40.0, -74.0))

	var conflict *LocationConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "1", conflict.StationID)
	assert.Equal(t, geo.LocationKey(40.0, -74.0), conflict.LocationKey)
}

func TestMemoryStoreRejectedReleasesLocation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Insert(ctx, createTestRecord(40.0, -74.0))
	require.NoError(t, err)

	rejected, err := s.UpdateStatus(ctx, "1", models.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)

	replacement, err := s.Insert(ctx, createTestRecord(40.0, -74.0))
	require.NoError(t, err)
	assert.Equal(t, "2", replacement.ID)

	// The rejected station cannot come back while the key is held.
	_, err = s.UpdateStatus(ctx, "1", models.StatusPending)
	var conflict *LocationConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "2", conflict.StationID)
}

func TestMemoryStoreListFiltersAndOrder(t *testing.T) {
	s := NewMemoryStore()
	s.Seed(
		models.Station{ID: "10", Latitude: 40.0, Longitude: -74.0, Status: models.StatusApproved},
		models.Station{ID: "2", Latitude: 40.0001, Longitude: -74.0, Status: models.StatusPending},
		models.Station{ID: "3", Latitude: 50.0, Longitude: 10.0, Status: models.StatusApproved},
	)
	ctx := context.Background()

	all, err := s.List(ctx, models.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"2", "3", "10"}, []string{all[0].ID, all[1].ID, all[2].ID})

	box := geo.BoundingBoxAround(40.0, -74.0, 1)
	approved, err := s.ListApproved(ctx, &box)
	require.NoError(t, err)
	assert.Equal(t, []models.ApprovedStation{
		{ID: "10", Latitude: 40.0, Longitude: -74.0, Status: models.StatusApproved},
	}, approved)

	allApproved, err := s.ListApproved(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, allApproved, 2)

	// Seeding advances the id sequence past numeric seeds.
	inserted, err := s.Insert(ctx, createTestRecord(-10, -10))
	require.NoError(t, err)
	assert.Equal(t, "11", inserted.ID)
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Insert(ctx, createTestRecord(40.0, -74.0))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.List(ctx, models.ListFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStoreUpdateStatusNotFound(t *testing.T) {
	_, err := NewMemoryStore().UpdateStatus(context.Background(), "1", models.StatusApproved)
	assert.ErrorIs(t, err, ErrNotFound)
}
