package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bbernstein/fuelreg/backend-go/internal/events"
	"github.com/bbernstein/fuelreg/backend-go/internal/geo"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/bbernstein/fuelreg/backend-go/internal/store"
	"github.com/rs/zerolog/log"
)

// CacheInvalidator drops cached copies of a station after it changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, stationID string)
}

// Registrar runs the duplicate check and the insert as one unit. The mutex makes
// this process the single writer; the store's location-key uniqueness catches
// races with other processes.
type Registrar struct {
	store       models.StationStore
	validator   *Validator
	publisher   events.Publisher
	invalidator CacheInvalidator
	now         func() time.Time
	mu          sync.Mutex
}

type RegistrarOption func(*Registrar)

func WithPublisher(p events.Publisher) RegistrarOption {
	return func(r *Registrar) {
		if p != nil {
			r.publisher = p
		}
	}
}

func WithCacheInvalidator(inv CacheInvalidator) RegistrarOption {
	return func(r *Registrar) {
		r.invalidator = inv
	}
}

func NewRegistrar(stationStore models.StationStore, validator *Validator, opts ...RegistrarOption) *Registrar {
	if validator == nil {
		validator = NewValidator()
	}
	r := &Registrar{
		store:     stationStore,
		validator: validator,
		publisher: events.NopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates the candidate, rejects it when a compared station lies within
// the minimum separation and otherwise persists it as pending.
func (r *Registrar) Register(ctx context.Context, candidate models.StationCandidate) (*models.Station, error) {
	// Field validation needs no lock.
	if err := r.validator.Validate(candidate); err != nil {
		log.Debug().Err(err).Msg("Registration rejected: invalid input")
		return nil, err
	}

	station, err := r.registerExclusive(ctx, candidate)
	if err != nil {
		var duplicate *DuplicateNearbyError
		if errors.As(err, &duplicate) {
			log.Info().
				Str("conflicting_station_id", duplicate.StationID).
				Float64("distance_km", duplicate.DistanceKm).
				Msg("Registration rejected: duplicate nearby")
		}
		return nil, err
	}

	log.Info().
		Str("station_id", station.ID).
		Float64("lat", station.Latitude).
		Float64("lon", station.Longitude).
		Msg("Station registered")

	r.publish(ctx, events.NewStationRegistered(*station, r.now()))
	return station, nil
}

func (r *Registrar) registerExclusive(ctx context.Context, candidate models.StationCandidate) (*models.Station, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.comparisonSet(ctx, candidate.Latitude, candidate.Longitude)
	if err != nil {
		return nil, err
	}

	record, err := r.validator.CheckAndNormalize(candidate, existing)
	if err != nil {
		return nil, err
	}

	station, err := r.store.Insert(ctx, *record)
	if err != nil {
		var conflict *store.LocationConflictError
		if errors.As(err, &conflict) {
			return nil, r.duplicateFromConflict(ctx, candidate.Latitude, candidate.Longitude, conflict)
		}
		return nil, fmt.Errorf("inserting station: %w", err)
	}
	return station, nil
}

// UpdateStatus applies a moderation decision. Approving a station re-runs the
// duplicate check against the other approved stations so the separation invariant
// also holds for stations that waited in pending.
func (r *Registrar) UpdateStatus(ctx context.Context, stationID string, status models.Status) (*models.Station, error) {
	if !status.IsValid() {
		return nil, NewInvalidInputError("status", fmt.Sprintf("unknown status %q", status))
	}

	r.mu.Lock()
	current, err := r.store.Get(ctx, stationID)
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("getting station %s: %w", stationID, err)
	}

	if status == models.StatusApproved && current.Status != models.StatusApproved {
		if err := r.checkApproval(ctx, *current); err != nil {
			r.mu.Unlock()
			return nil, err
		}
	}

	updated, err := r.store.UpdateStatus(ctx, stationID, status)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("updating station %s: %w", stationID, err)
	}

	if r.invalidator != nil {
		r.invalidator.Invalidate(ctx, stationID)
	}

	log.Info().
		Str("station_id", stationID).
		Str("previous_status", string(current.Status)).
		Str("status", string(updated.Status)).
		Msg("Station status updated")

	if current.Status != updated.Status {
		r.publish(ctx, events.NewStatusChanged(*updated, current.Status, r.now()))
	}
	return updated, nil
}

func (r *Registrar) checkApproval(ctx context.Context, station models.Station) error {
	box := geo.BoundingBoxAround(station.Latitude, station.Longitude, r.validator.MinSeparationKm())
	approved, err := r.store.ListApproved(ctx, &box)
	if err != nil {
		return fmt.Errorf("listing approved stations: %w", err)
	}

	others := make([]models.ApprovedStation, 0, len(approved))
	for _, a := range approved {
		if a.ID != station.ID {
			others = append(others, a)
		}
	}

	// Approval only compares against approved stations, whatever the policy.
	approvalCheck := &Validator{minSeparationKm: r.validator.MinSeparationKm()}
	if conflict := approvalCheck.nearestConflict(station.Latitude, station.Longitude, others); conflict != nil {
		return conflict
	}
	return nil
}

// comparisonSet loads the stations near (lat, lon) that take part in the duplicate check.
func (r *Registrar) comparisonSet(ctx context.Context, lat, lon float64) ([]models.ApprovedStation, error) {
	box := geo.BoundingBoxAround(lat, lon, r.validator.MinSeparationKm())

	if !r.validator.comparePending {
		approved, err := r.store.ListApproved(ctx, &box)
		if err != nil {
			return nil, fmt.Errorf("listing approved stations: %w", err)
		}
		return approved, nil
	}

	stations, err := r.store.List(ctx, models.ListFilter{
		Statuses: r.validator.ComparedStatuses(),
		Box:      &box,
	})
	if err != nil {
		return nil, fmt.Errorf("listing comparison stations: %w", err)
	}
	comparable := make([]models.ApprovedStation, len(stations))
	for i, s := range stations {
		comparable[i] = s.Comparable()
	}
	return comparable, nil
}

func (r *Registrar) duplicateFromConflict(ctx context.Context, lat, lon float64, conflict *store.LocationConflictError) error {
	dup := NewDuplicateNearbyError(conflict.StationID, 0, r.validator.MinSeparationKm())
	dup.Err = conflict

	if conflict.StationID != "" {
		if existing, err := r.store.Get(ctx, conflict.StationID); err == nil {
			dup.DistanceKm = geo.DistanceKm(lat, lon, existing.Latitude, existing.Longitude)
		}
	}
	return dup
}

// publish is best effort: a broker outage must not undo a committed registration.
func (r *Registrar) publish(ctx context.Context, event events.Event) {
	if err := r.publisher.Publish(ctx, event); err != nil {
		log.Warn().
			Err(err).
			Str("event_type", event.Type).
			Str("station_id", event.StationID).
			Msg("Failed to publish event")
	}
}
