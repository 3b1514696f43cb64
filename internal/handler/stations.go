package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bbernstein/fuelreg/backend-go/internal/api"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/bbernstein/fuelreg/backend-go/internal/photos"
	"github.com/bbernstein/fuelreg/backend-go/internal/registry"
	"github.com/bbernstein/fuelreg/backend-go/internal/station"
	"github.com/bbernstein/fuelreg/backend-go/internal/store"
	"github.com/rs/zerolog/log"
)

// multipartOverhead leaves room for form boundaries and headers around a photo.
const multipartOverhead = 1 << 20

// Registrar accepts station candidates.
type Registrar interface {
	Register(ctx context.Context, candidate models.StationCandidate) (*models.Station, error)
}

// StationLister lists persisted stations.
type StationLister interface {
	List(ctx context.Context, filter models.ListFilter) ([]models.Station, error)
}

type StationsHandler struct {
	registrar     Registrar
	stationFinder models.StationFinder
	lister        StationLister
	photoStore    photos.Store
	graphQL       http.Handler
}

type Option func(*StationsHandler)

// WithPhotoStore enables POST /api/photos.
func WithPhotoStore(store photos.Store) Option {
	return func(h *StationsHandler) {
		h.photoStore = store
	}
}

// WithGraphQL mounts a GraphQL endpoint at /graphql.
func WithGraphQL(h http.Handler) Option {
	return func(sh *StationsHandler) {
		sh.graphQL = h
	}
}

func NewStationsHandler(registrar Registrar, finder models.StationFinder, lister StationLister, opts ...Option) *StationsHandler {
	h := &StationsHandler{
		registrar:     registrar,
		stationFinder: finder,
		lister:        lister,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the HTTP API wrapped in request logging.
func (h *StationsHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", h.HandleRegister)
	mux.HandleFunc("GET /api/stations", h.HandleListStations)
	mux.HandleFunc("GET /api/stations/nearby", h.HandleNearbyStations)
	mux.HandleFunc("GET /api/stations/{id}", h.HandleGetStation)
	if h.photoStore != nil {
		mux.HandleFunc("POST /api/photos", h.HandleUploadPhoto)
	}
	if h.graphQL != nil {
		mux.Handle("/graphql", h.graphQL)
	}
	mux.HandleFunc("OPTIONS /api/", handlePreflight)
	mux.HandleFunc("GET /healthz", handleHealth)

	return RequestLogger(mux)
}

func (h *StationsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, api.MaxRequestBytes)

	req, err := api.DecodeRegisterRequest(r.Body)
	if err != nil {
		log.Debug().Err(err).Msg("Rejected malformed registration body")
		api.WriteJSON(w, http.StatusBadRequest, &api.RegisterResponse{Error: "Malformed JSON body"})
		return
	}

	candidate, err := req.Candidate()
	if err != nil {
		resp, status := api.NewRegisterFailure(err)
		api.WriteJSON(w, status, resp)
		return
	}

	created, err := h.registrar.Register(r.Context(), candidate)
	if err != nil {
		resp, status := api.NewRegisterFailure(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Msg("Registration failed")
		} else {
			log.Info().
				Str("rejection", string(registry.KindOf(err))).
				Str("reason", err.Error()).
				Msg("Registration rejected")
		}
		api.WriteJSON(w, status, resp)
		return
	}

	api.WriteJSON(w, http.StatusCreated, api.NewRegisterSuccess(created.ID))
}

func (h *StationsHandler) HandleListStations(w http.ResponseWriter, r *http.Request) {
	var filter models.ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := models.ParseStatus(strings.TrimSpace(part))
			if err != nil {
				api.WriteError(w, err.Error(), http.StatusBadRequest)
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	stations, err := h.lister.List(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Listing stations failed")
		api.WriteError(w, "Error listing stations", http.StatusInternalServerError)
		return
	}

	api.WriteJSON(w, http.StatusOK, api.NewStationsResponse(stations))
}

func (h *StationsHandler) HandleGetStation(w http.ResponseWriter, r *http.Request) {
	stationID := r.PathValue("id")

	found, err := h.stationFinder.FindStation(r.Context(), stationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteError(w, "Station not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("station_id", stationID).Msg("Finding station failed")
		api.WriteError(w, "Error finding station", http.StatusInternalServerError)
		return
	}

	api.WriteJSON(w, http.StatusOK, api.NewStationResponse(*found))
}

func (h *StationsHandler) HandleNearbyStations(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	lat, lon, err := api.ParseCoordinates(params)
	if err != nil {
		api.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := api.ParseLimit(params, station.DefaultNearbyLimit)

	stations, err := h.stationFinder.FindNearestStations(r.Context(), lat, lon, limit)
	if err != nil {
		if errors.Is(err, station.ErrInvalidCoordinates) {
			api.WriteError(w, "Invalid coordinates", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("Nearby search failed")
		api.WriteError(w, "Error finding stations", http.StatusInternalServerError)
		return
	}

	api.WriteJSON(w, http.StatusOK, api.NewStationsResponse(stations))
}

func (h *StationsHandler) HandleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, photos.MaxPhotoBytes+multipartOverhead)

	file, header, err := r.FormFile("photo")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.WriteError(w, "Photo too large", http.StatusRequestEntityTooLarge)
			return
		}
		api.WriteError(w, "Missing photo file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	reference, err := h.photoStore.Put(r.Context(), header.Header.Get("Content-Type"), file, header.Size)
	switch {
	case errors.Is(err, photos.ErrPhotoTooLarge):
		api.WriteError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	case errors.Is(err, photos.ErrUnsupportedType), errors.Is(err, photos.ErrEmptyPhoto):
		api.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		log.Error().Err(err).Msg("Photo upload failed")
		api.WriteError(w, "Error storing photo", http.StatusInternalServerError)
		return
	}

	api.WriteJSON(w, http.StatusCreated, &api.PhotoResponse{Success: true, Reference: reference})
}

func handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, &api.HealthResponse{Status: "ok"})
}
