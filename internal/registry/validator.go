// Package registry decides whether a proposed fuel station may be registered.
//
// The Validator is pure: it takes the candidate and the comparison set and either
// returns a storage-ready record or a typed rejection. Registrar wraps it with a
// storage collaborator and serializes the scan-and-insert step.
package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/bbernstein/fuelreg/backend-go/internal/geo"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
)

// DefaultMinSeparationKm is the minimum distance between two approved stations (50 m).
const DefaultMinSeparationKm = 0.05

type Validator struct {
	minSeparationKm float64
	comparePending  bool
}

type Option func(*Validator)

// WithMinSeparationKm overrides the minimum separation. Non-positive values are ignored.
func WithMinSeparationKm(km float64) Option {
	return func(v *Validator) {
		if km > 0 && !math.IsInf(km, 1) {
			v.minSeparationKm = km
		}
	}
}

// WithPendingComparison makes pending stations participate in the duplicate check
// alongside approved ones.
func WithPendingComparison(enabled bool) Option {
	return func(v *Validator) {
		v.comparePending = enabled
	}
}

func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		minSeparationKm: DefaultMinSeparationKm,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) MinSeparationKm() float64 {
	return v.minSeparationKm
}

// ComparedStatuses lists the statuses that take part in the duplicate check.
func (v *Validator) ComparedStatuses() []models.Status {
	if v.comparePending {
		return []models.Status{models.StatusApproved, models.StatusPending}
	}
	return []models.Status{models.StatusApproved}
}

// CheckAndNormalize is the functional form of Validator.CheckAndNormalize with an
// explicit minimum separation and the default approved-only comparison. A separation
// of zero disables the duplicate check; negative or non-finite values are rejected.
func CheckAndNormalize(candidate models.StationCandidate, approved []models.ApprovedStation, minSeparationKm float64) (*models.NormalizedRecord, error) {
	if math.IsNaN(minSeparationKm) || math.IsInf(minSeparationKm, 0) || minSeparationKm < 0 {
		return nil, NewInvalidInputError("minSeparationKm", "must be a finite non-negative distance")
	}
	v := &Validator{minSeparationKm: minSeparationKm}
	return v.CheckAndNormalize(candidate, approved)
}

// CheckAndNormalize validates the candidate, scans the comparison set for a station
// closer than the minimum separation and returns a pending record on success.
// Stations whose status is not compared are skipped.
func (v *Validator) CheckAndNormalize(candidate models.StationCandidate, existing []models.ApprovedStation) (*models.NormalizedRecord, error) {
	if err := v.Validate(candidate); err != nil {
		return nil, err
	}

	if conflict := v.nearestConflict(candidate.Latitude, candidate.Longitude, existing); conflict != nil {
		return nil, conflict
	}

	return normalize(candidate)
}

// Validate checks required fields and coordinate ranges, reporting the first failure.
func (v *Validator) Validate(candidate models.StationCandidate) error {
	required := []struct {
		field string
		value string
	}{
		{"name", candidate.Name},
		{"owner", candidate.Owner},
		{"email", candidate.Email},
		{"phone", candidate.Phone},
		{"address", candidate.Address},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return NewInvalidInputError(r.field, "must not be empty")
		}
	}

	if !geo.ValidLatitude(candidate.Latitude) {
		return NewInvalidInputError("latitude", "must be within [-90, 90]")
	}
	if !geo.ValidLongitude(candidate.Longitude) {
		return NewInvalidInputError("longitude", "must be within [-180, 180]")
	}

	if len(candidate.FuelTypes) == 0 {
		return NewInvalidInputError("fuelTypes", "must contain at least one fuel type")
	}
	for _, fuel := range candidate.FuelTypes {
		if strings.TrimSpace(fuel) == "" {
			return NewInvalidInputError("fuelTypes", "must not contain blank entries")
		}
	}

	for _, photo := range candidate.Photos {
		if strings.TrimSpace(photo) == "" {
			return NewInvalidInputError("photos", "must not contain blank references")
		}
	}

	return nil
}

// nearestConflict returns the closest compared station within the minimum separation.
func (v *Validator) nearestConflict(lat, lon float64, existing []models.ApprovedStation) *DuplicateNearbyError {
	var conflict *DuplicateNearbyError
	for _, station := range existing {
		if !v.compares(station.Status) {
			continue
		}
		distance := geo.DistanceKm(lat, lon, station.Latitude, station.Longitude)
		if distance >= v.minSeparationKm {
			continue
		}
		if conflict == nil || distance < conflict.DistanceKm {
			conflict = NewDuplicateNearbyError(station.ID, distance, v.minSeparationKm)
		}
	}
	return conflict
}

func (v *Validator) compares(status models.Status) bool {
	switch status {
	case models.StatusApproved, "":
		// Entries without a status come from callers that pass an approved-only list.
		return true
	case models.StatusPending:
		return v.comparePending
	default:
		return false
	}
}

func normalize(candidate models.StationCandidate) (*models.NormalizedRecord, error) {
	fuelTypes := dedupe(candidate.FuelTypes)
	photos := make([]string, 0, len(candidate.Photos))
	for _, photo := range candidate.Photos {
		photos = append(photos, strings.TrimSpace(photo))
	}

	fuelJSON, err := json.Marshal(fuelTypes)
	if err != nil {
		return nil, fmt.Errorf("encoding fuel types: %w", err)
	}
	photosJSON, err := json.Marshal(photos)
	if err != nil {
		return nil, fmt.Errorf("encoding photos: %w", err)
	}

	return &models.NormalizedRecord{
		Name:          strings.TrimSpace(candidate.Name),
		Owner:         strings.TrimSpace(candidate.Owner),
		Email:         strings.TrimSpace(candidate.Email),
		Phone:         strings.TrimSpace(candidate.Phone),
		Address:       strings.TrimSpace(candidate.Address),
		Latitude:      candidate.Latitude,
		Longitude:     candidate.Longitude,
		FuelTypes:     fuelTypes,
		Photos:        photos,
		FuelTypesJSON: string(fuelJSON),
		PhotosJSON:    string(photosJSON),
		Status:        models.StatusPending,
		LocationKey:   geo.LocationKey(candidate.Latitude, candidate.Longitude),
		Fix:           candidate.Fix,
	}, nil
}

// dedupe trims entries and drops repeats, keeping first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
