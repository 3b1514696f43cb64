package models

import (
	"context"

	"github.com/bbernstein/fuelreg/backend-go/internal/geo"
)

// StationStore is the storage collaborator of the registry. Insert must enforce
// uniqueness of NormalizedRecord.LocationKey among non-rejected stations.
type StationStore interface {
	ListApproved(ctx context.Context, box *geo.BoundingBox) ([]ApprovedStation, error)
	List(ctx context.Context, filter ListFilter) ([]Station, error)
	Get(ctx context.Context, id string) (*Station, error)
	Insert(ctx context.Context, record NormalizedRecord) (*Station, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Station, error)
}

type StationFinder interface {
	FindStation(ctx context.Context, stationID string) (*Station, error)
	FindNearestStations(ctx context.Context, lat, lon float64, limit int) ([]Station, error)
}
