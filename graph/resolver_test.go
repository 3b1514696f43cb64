package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/bbernstein/fuelreg/backend-go/internal/registry"
	"github.com/bbernstein/fuelreg/backend-go/internal/station"
	"github.com/bbernstein/fuelreg/backend-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStationFinder struct {
	findStationFn         func(ctx context.Context, stationID string) (*models.Station, error)
	findNearestStationsFn func(ctx context.Context, lat, lon float64, limit int) ([]models.Station, error)
}

func (m *mockStationFinder) FindStation(ctx context.Context, stationID string) (*models.Station, error) {
	if m.findStationFn != nil {
		return m.findStationFn(ctx, stationID)
	}
	return nil, store.ErrNotFound
}

func (m *mockStationFinder) FindNearestStations(ctx context.Context, lat, lon float64, limit int) ([]models.Station, error) {
	if m.findNearestStationsFn != nil {
		return m.findNearestStationsFn(ctx, lat, lon, limit)
	}
	return nil, nil
}

type mockLister struct {
	listFn func(ctx context.Context, filter models.ListFilter) ([]models.Station, error)
}

func (m *mockLister) List(ctx context.Context, filter models.ListFilter) ([]models.Station, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

type mockRegistrar struct {
	registerFn func(ctx context.Context, candidate models.StationCandidate) (*models.Station, error)
}

func (m *mockRegistrar) Register(ctx context.Context, candidate models.StationCandidate) (*models.Station, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, candidate)
	}
	return &models.Station{ID: "1"}, nil
}

func TestResolver_Station(t *testing.T) {
	resolver := &Resolver{
		StationFinder: &mockStationFinder{
			findStationFn: func(ctx context.Context, stationID string) (*models.Station, error) {
				switch stationID {
				case "1":
					return &models.Station{ID: "1", Name: "Harbor Fuel"}, nil
				case "broken":
					return nil, errors.New("connection reset")
				}
				return nil, fmt.Errorf("finding station %s: %w", stationID, store.ErrNotFound)
			},
		},
	}

	found, err := resolver.Station(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Harbor Fuel", found.Name)

	found, err = resolver.Station(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = resolver.Station(context.Background(), "broken")
	assert.EqualError(t, err, "connection reset")
}

func TestResolver_NearbyStations(t *testing.T) {
	tests := []struct {
		name      string
		limit     *int
		wantLimit int
	}{
		{
			name:      "default limit",
			limit:     nil,
			wantLimit: station.DefaultNearbyLimit,
		},
		{
			name:      "explicit limit",
			limit:     func() *int { limit := 2; return &limit }(),
			wantLimit: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			resolver := &Resolver{
				StationFinder: &mockStationFinder{
					findNearestStationsFn: func(ctx context.Context, lat, lon float64, limit int) ([]models.Station, error) {
						gotLimit = limit
						return []models.Station{{ID: "1", Latitude: lat, Longitude: lon}}, nil
					},
				},
			}

			got, err := resolver.NearbyStations(context.Background(), 40.0, -74.0, tt.limit)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantLimit, gotLimit)
		})
	}
}

func TestResolver_RegisterStation(t *testing.T) {
	tests := []struct {
		name        string
		registerErr error
		wantSuccess bool
		wantErr     bool
		wantField   string
		wantStation string
	}{
		{
			name:        "accepted",
			wantSuccess: true,
			wantStation: "1",
		},
		{
			name:        "invalid input is a result",
			registerErr: registry.NewInvalidInputError("email", "must not be empty"),
			wantField:   "email",
		},
		{
			name:        "duplicate is a result",
			registerErr: registry.NewDuplicateNearbyError("7", 0.03125, 0.05),
		},
		{
			name:        "storage failure is an error",
			registerErr: errors.New("pool closed"),
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &Resolver{
				Registrar: &mockRegistrar{
					registerFn: func(ctx context.Context, candidate models.StationCandidate) (*models.Station, error) {
						if tt.registerErr != nil {
							return nil, tt.registerErr
						}
						return &models.Station{ID: "1"}, nil
					},
				},
			}

			got, err := resolver.RegisterStation(context.Background(), models.StationCandidate{Name: "Harbor Fuel"})
			if tt.wantErr {
				require.Error(t, err)
				assert.NotContains(t, err.Error(), "pool closed")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, got.Success)
			assert.Equal(t, tt.wantField, got.Field)
			assert.Equal(t, tt.wantStation, got.StationID)
		})
	}
}
