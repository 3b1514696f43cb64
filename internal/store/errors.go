package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a station id does not exist.
var ErrNotFound = errors.New("station not found")

// LocationConflictError is returned by Insert when another non-rejected station already
// holds the same quantized location key.
type LocationConflictError struct {
	LocationKey string
	StationID   string
}

func (e *LocationConflictError) Error() string {
	if e.StationID == "" {
		return fmt.Sprintf("location %s already registered", e.LocationKey)
	}
	return fmt.Sprintf("location %s already registered by station %s", e.LocationKey, e.StationID)
}

func NewLocationConflictError(locationKey, stationID string) *LocationConflictError {
	return &LocationConflictError{
		LocationKey: locationKey,
		StationID:   stationID,
	}
}
