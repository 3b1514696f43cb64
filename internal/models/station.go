package models

import (
	"fmt"
	"time"

	"github.com/bbernstein/fuelreg/backend-go/internal/geo"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus converts a raw string into a known Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown station status: %q", s)
	}
	return status, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// GeoFix is a location reading captured by the client device, stored as-is.
type GeoFix struct {
	AccuracyMeters float64   `json:"accuracyMeters" yaml:"accuracyMeters" dynamodbav:"accuracyMeters"`
	CapturedAt     time.Time `json:"capturedAt" yaml:"capturedAt" dynamodbav:"capturedAt"`
}

// StationCandidate is a proposed station that has not been persisted yet.
type StationCandidate struct {
	Name      string   `json:"name" yaml:"name"`
	Owner     string   `json:"owner" yaml:"owner"`
	Email     string   `json:"email" yaml:"email"`
	Phone     string   `json:"phone" yaml:"phone"`
	Address   string   `json:"address" yaml:"address"`
	Latitude  float64  `json:"latitude" yaml:"latitude"`
	Longitude float64  `json:"longitude" yaml:"longitude"`
	FuelTypes []string `json:"fuelTypes" yaml:"fuelTypes"`
	Photos    []string `json:"photos" yaml:"photos"`
	Fix       *GeoFix  `json:"fix,omitempty" yaml:"fix,omitempty"`
}

// ApprovedStation is the comparison view of a persisted station used by the duplicate check.
type ApprovedStation struct {
	ID        string  `json:"id" yaml:"id"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Status    Status  `json:"status" yaml:"status"`
}

// NormalizedRecord is an accepted candidate ready for storage. Identity and creation
// time are assigned by the store.
type NormalizedRecord struct {
	Name          string
	Owner         string
	Email         string
	Phone         string
	Address       string
	Latitude      float64
	Longitude     float64
	FuelTypes     []string
	Photos        []string
	FuelTypesJSON string
	PhotosJSON    string
	Status        Status
	LocationKey   string
	Fix           *GeoFix
}

type Station struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	FuelTypes []string  `json:"fuelTypes"`
	Photos    []string  `json:"photos"`
	Status    Status    `json:"status"`
	Fix       *GeoFix   `json:"fix,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Distance  float64   `json:"distance,omitempty"`
}

// NewStation materializes a stored station from a normalized record.
func NewStation(id string, record NormalizedRecord, createdAt time.Time) Station {
	return Station{
		ID:        id,
		Name:      record.Name,
		Owner:     record.Owner,
		Email:     record.Email,
		Phone:     record.Phone,
		Address:   record.Address,
		Latitude:  record.Latitude,
		Longitude: record.Longitude,
		FuelTypes: append([]string(nil), record.FuelTypes...),
		Photos:    append([]string{}, record.Photos...),
		Status:    record.Status,
		Fix:       record.Fix,
		CreatedAt: createdAt,
	}
}

// Comparable returns the duplicate-check view of the station.
func (s Station) Comparable() ApprovedStation {
	return ApprovedStation{
		ID:        s.ID,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Status:    s.Status,
	}
}

// ListFilter narrows a station listing. Empty Statuses means every status.
type ListFilter struct {
	Statuses []Status
	Box      *geo.BoundingBox
}

// Matches reports whether the station passes the filter.
func (f ListFilter) Matches(s Station) bool {
	if f.Box != nil && !f.Box.Contains(s.Latitude, s.Longitude) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, status := range f.Statuses {
		if s.Status == status {
			return true
		}
	}
	return false
}
