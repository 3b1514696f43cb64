package registry

import (
	"errors"
	"fmt"
)

// RejectionKind classifies why a registration was refused.
type RejectionKind string

const (
	RejectionNone            RejectionKind = ""
	RejectionInvalidInput    RejectionKind = "InvalidInput"
	RejectionDuplicateNearby RejectionKind = "DuplicateNearby"
)

// InvalidInputError names the first candidate field that failed validation.
type InvalidInputError struct {
	Field      string
	Constraint string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Constraint)
}

func NewInvalidInputError(field, constraint string) *InvalidInputError {
	return &InvalidInputError{
		Field:      field,
		Constraint: constraint,
	}
}

// DuplicateNearbyError reports the existing station that sits closer than the
// minimum separation.
type DuplicateNearbyError struct {
	StationID       string
	DistanceKm      float64
	MinSeparationKm float64
	Err             error
}

func (e *DuplicateNearbyError) Error() string {
	return fmt.Sprintf("station %s already exists %.1f m away (minimum separation %.0f m)",
		e.StationID, e.DistanceKm*1000, e.MinSeparationKm*1000)
}

func (e *DuplicateNearbyError) Unwrap() error {
	return e.Err
}

func NewDuplicateNearbyError(stationID string, distanceKm, minSeparationKm float64) *DuplicateNearbyError {
	return &DuplicateNearbyError{
		StationID:       stationID,
		DistanceKm:      distanceKm,
		MinSeparationKm: minSeparationKm,
	}
}

// KindOf maps an error returned by the registry to its rejection kind.
// Infrastructure errors map to RejectionNone.
func KindOf(err error) RejectionKind {
	var invalid *InvalidInputError
	if errors.As(err, &invalid) {
		return RejectionInvalidInput
	}
	var duplicate *DuplicateNearbyError
	if errors.As(err, &duplicate) {
		return RejectionDuplicateNearby
	}
	return RejectionNone
}
