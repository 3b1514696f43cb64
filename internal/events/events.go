// Package events publishes registry lifecycle events to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/google/uuid"
)

const (
	TypeStationRegistered = "station.registered"
	TypeStatusChanged     = "station.status_changed"
)

type Event struct {
	ID             string        `json:"id"`
	Type           string        `json:"type"`
	StationID      string        `json:"stationId"`
	Status         models.Status `json:"status"`
	PreviousStatus models.Status `json:"previousStatus,omitempty"`
	Latitude       float64       `json:"latitude"`
	Longitude      float64       `json:"longitude"`
	OccurredAt     time.Time     `json:"occurredAt"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

func NewStationRegistered(station models.Station, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       TypeStationRegistered,
		StationID:  station.ID,
		Status:     station.Status,
		Latitude:   station.Latitude,
		Longitude:  station.Longitude,
		OccurredAt: at.UTC(),
	}
}

func NewStatusChanged(station models.Station, previous models.Status, at time.Time) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           TypeStatusChanged,
		StationID:      station.ID,
		Status:         station.Status,
		PreviousStatus: previous,
		Latitude:       station.Latitude,
		Longitude:      station.Longitude,
		OccurredAt:     at.UTC(),
	}
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
