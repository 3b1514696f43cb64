package graph

import (
	"context"
	"errors"
	"net/http"

	"github.com/bbernstein/fuelreg/backend-go/internal/api"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/bbernstein/fuelreg/backend-go/internal/station"
	"github.com/bbernstein/fuelreg/backend-go/internal/store"
	"github.com/rs/zerolog/log"
)

type Registrar interface {
	Register(ctx context.Context, candidate models.StationCandidate) (*models.Station, error)
}

type StationLister interface {
	List(ctx context.Context, filter models.ListFilter) ([]models.Station, error)
}

type Resolver struct {
	StationFinder models.StationFinder
	Lister        StationLister
	Registrar     Registrar
}

// Station returns nil without an error when the id is unknown.
func (r *Resolver) Station(ctx context.Context, id string) (*models.Station, error) {
	found, err := r.StationFinder.FindStation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return found, err
}

func (r *Resolver) Stations(ctx context.Context, statuses []models.Status) ([]models.Station, error) {
	return r.Lister.List(ctx, models.ListFilter{Statuses: statuses})
}

func (r *Resolver) NearbyStations(ctx context.Context, lat, lon float64, limit *int) ([]models.Station, error) {
	n := station.DefaultNearbyLimit
	if limit != nil {
		n = *limit
	}
	return r.StationFinder.FindNearestStations(ctx, lat, lon, n)
}

// RegisterStation reports rejections in the result. Only storage failures are errors.
func (r *Resolver) RegisterStation(ctx context.Context, candidate models.StationCandidate) (*api.RegisterResponse, error) {
	created, err := r.Registrar.Register(ctx, candidate)
	if err != nil {
		resp, status := api.NewRegisterFailure(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Msg("Registration failed")
			return nil, errors.New(resp.Error)
		}
		return resp, nil
	}
	return api.NewRegisterSuccess(created.ID), nil
}
