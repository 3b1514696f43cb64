package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bbernstein/fuelreg/backend-go/internal/geo"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/bbernstein/fuelreg/backend-go/internal/registry"
	"github.com/rs/zerolog/log"
)

// MaxRequestBytes bounds JSON request bodies.
const MaxRequestBytes = 1 << 20

type APIResponse struct {
	ResponseType string `json:"responseType"`
}

type StationsResponse struct {
	APIResponse
	Stations []models.Station `json:"stations"`
}

type StationResponse struct {
	APIResponse
	Station models.Station `json:"station"`
}

type ErrorResponse struct {
	APIResponse
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// RegisterResponse is the body of POST /api/register.
type RegisterResponse struct {
	Success              bool     `json:"success"`
	StationID            string   `json:"stationId,omitempty"`
	Error                string   `json:"error,omitempty"`
	Field                string   `json:"field,omitempty"`
	ConflictingStationID string   `json:"conflictingStationId,omitempty"`
	DistanceMeters       *float64 `json:"distanceMeters,omitempty"`
}

type PhotoResponse struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// RegisterRequest is the JSON body of a registration. Coordinates are pointers so a
// missing value is distinguishable from 0.
type RegisterRequest struct {
	Name      string         `json:"name"`
	Owner     string         `json:"owner"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Address   string         `json:"address"`
	Latitude  *float64       `json:"latitude"`
	Longitude *float64       `json:"longitude"`
	FuelTypes []string       `json:"fuelTypes"`
	Photos    []string       `json:"photos"`
	Fix       *models.GeoFix `json:"fix,omitempty"`
}

func NewStationsResponse(stations []models.Station) *StationsResponse {
	if stations == nil {
		stations = []models.Station{}
	}
	return &StationsResponse{
		APIResponse: APIResponse{ResponseType: "stations"},
		Stations:    stations,
	}
}

func NewStationResponse(station models.Station) *StationResponse {
	return &StationResponse{
		APIResponse: APIResponse{ResponseType: "station"},
		Station:     station,
	}
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		APIResponse: APIResponse{ResponseType: "error"},
		Error:       message,
	}
}

func NewRegisterSuccess(stationID string) *RegisterResponse {
	return &RegisterResponse{
		Success:   true,
		StationID: stationID,
	}
}

// NewRegisterFailure converts a registration error into a response body and status code.
func NewRegisterFailure(err error) (*RegisterResponse, int) {
	var invalid *registry.InvalidInputError
	if errors.As(err, &invalid) {
		return &RegisterResponse{
			Error: err.Error(),
			Field: invalid.Field,
		}, http.StatusBadRequest
	}

	var duplicate *registry.DuplicateNearbyError
	if errors.As(err, &duplicate) {
		meters := duplicate.DistanceKm * 1000
		return &RegisterResponse{
			Error:                err.Error(),
			ConflictingStationID: duplicate.StationID,
			DistanceMeters:       &meters,
		}, http.StatusConflict
	}

	return &RegisterResponse{Error: "Internal Server Error"}, http.StatusInternalServerError
}

// DecodeRegisterRequest reads a registration body, rejecting unknown fields and
// trailing data.
func DecodeRegisterRequest(body io.Reader) (*RegisterRequest, error) {
	decoder := json.NewDecoder(io.LimitReader(body, MaxRequestBytes))
	decoder.DisallowUnknownFields()

	var req RegisterRequest
	if err := decoder.Decode(&req); err != nil {
		return nil, fmt.Errorf("decoding request body: %w", err)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, errors.New("decoding request body: unexpected data after JSON object")
	}
	return &req, nil
}

// Candidate converts the request into a candidate. Missing coordinates are reported
// as invalid input.
func (r *RegisterRequest) Candidate() (models.StationCandidate, error) {
	if r.Latitude == nil {
		return models.StationCandidate{}, registry.NewInvalidInputError("latitude", "is required")
	}
	if r.Longitude == nil {
		return models.StationCandidate{}, registry.NewInvalidInputError("longitude", "is required")
	}

	return models.StationCandidate{
		Name:      r.Name,
		Owner:     r.Owner,
		Email:     r.Email,
		Phone:     r.Phone,
		Address:   r.Address,
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
		FuelTypes: r.FuelTypes,
		Photos:    r.Photos,
		Fix:       r.Fix,
	}, nil
}

// NewRegisterRequest builds a request body from a candidate.
func NewRegisterRequest(candidate models.StationCandidate) *RegisterRequest {
	lat, lon := candidate.Latitude, candidate.Longitude
	return &RegisterRequest{
		Name:      candidate.Name,
		Owner:     candidate.Owner,
		Email:     candidate.Email,
		Phone:     candidate.Phone,
		Address:   candidate.Address,
		Latitude:  &lat,
		Longitude: &lon,
		FuelTypes: candidate.FuelTypes,
		Photos:    candidate.Photos,
		Fix:       candidate.Fix,
	}
}

// Response helpers
func WriteJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		statusCode = http.StatusInternalServerError
		jsonBody, _ = json.Marshal(NewErrorResponse("Internal Server Error"))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(statusCode)
	if _, err := w.Write(jsonBody); err != nil {
		log.Debug().Err(err).Msg("Failed to write response body")
	}
}

func WriteError(w http.ResponseWriter, message string, statusCode int) {
	WriteJSON(w, statusCode, NewErrorResponse(message))
}

// Error builds an API Gateway error response for failures outside the HTTP mux.
func Error(message string, statusCode int) (events.APIGatewayProxyResponse, error) {
	body, _ := json.Marshal(NewErrorResponse(message))

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(body),
	}, nil
}

// Parameter parsing helpers
func ParseCoordinates(params url.Values) (float64, float64, error) {
	latStr := params.Get("lat")
	lonStr := params.Get("lon")

	if latStr == "" || lonStr == "" {
		return 0, 0, MissingParameterError{Name: "lat and lon"}
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, InvalidCoordinatesError{}
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, InvalidCoordinatesError{}
	}

	if !geo.ValidLatitude(lat) || !geo.ValidLongitude(lon) {
		return 0, 0, InvalidCoordinatesError{}
	}

	return lat, lon, nil
}

// ParseLimit reads the optional "limit" parameter, returning defaultLimit when absent
// or not a positive integer.
func ParseLimit(params url.Values, defaultLimit int) int {
	if limit, err := strconv.Atoi(params.Get("limit")); err == nil && limit > 0 {
		return limit
	}
	return defaultLimit
}

type InvalidCoordinatesError struct{}

func (e InvalidCoordinatesError) Error() string {
	return "Invalid coordinates"
}

type MissingParameterError struct {
	Name string
}

func (e MissingParameterError) Error() string {
	return fmt.Sprintf("Missing required parameter: %s", e.Name)
}
