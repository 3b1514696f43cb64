package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bbernstein/fuelreg/backend-go/internal/geo"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const uniqueViolation = "23505"

// Schema creates the stations table. The partial unique index keeps one
// non-rejected station per location key.
const Schema = `
CREATE TABLE IF NOT EXISTS stations (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT NOT NULL,
	owner           TEXT NOT NULL,
	email           TEXT NOT NULL,
	phone           TEXT NOT NULL,
	address         TEXT NOT NULL,
	latitude        DOUBLE PRECISION NOT NULL,
	longitude       DOUBLE PRECISION NOT NULL,
	fuel_types      TEXT NOT NULL,
	photos          TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	location_key    TEXT NOT NULL,
	fix_accuracy_m  DOUBLE PRECISION,
	fix_captured_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS stations_location_key_active
	ON stations (location_key) WHERE status <> 'rejected';
CREATE INDEX IF NOT EXISTS stations_status_lat_lon ON stations (status, latitude, longitude);
`

const stationColumns = `id, name, owner, email, phone, address, latitude, longitude,
	fuel_types, photos, status, fix_accuracy_m, fix_captured_at, created_at`

// DBTX is the subset of pgx used by the store. *pgxpool.Pool and pgx.Tx both satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists stations in PostgreSQL.
type PostgresStore struct {
	db DBTX
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresPool opens a connection pool and verifies connectivity.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("creating stations schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListApproved(ctx context.Context, box *geo.BoundingBox) ([]models.ApprovedStation, error) {
	query := `SELECT id, latitude, longitude, status FROM stations WHERE status = $1`
	args := []any{string(models.StatusApproved)}
	if box != nil {
		query += ` AND latitude BETWEEN $2 AND $3 AND longitude BETWEEN $4 AND $5`
		args = append(args, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying approved stations: %w", err)
	}
	defer rows.Close()

	var approved []models.ApprovedStation
	for rows.Next() {
		var (
			id      int64
			station models.ApprovedStation
			status  string
		)
		if err := rows.Scan(&id, &station.Latitude, &station.Longitude, &status); err != nil {
			return nil, fmt.Errorf("scanning approved station: %w", err)
		}
		station.ID = strconv.FormatInt(id, 10)
		station.Status = models.Status(status)
		approved = append(approved, station)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating approved stations: %w", err)
	}
	return approved, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]models.Station, error) {
	var (
		conditions []string
		args       []any
	)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		args = append(args, statuses)
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Box != nil {
		args = append(args, filter.Box.MinLat, filter.Box.MaxLat, filter.Box.MinLon, filter.Box.MaxLon)
		n := len(args)
		conditions = append(conditions,
			fmt.Sprintf("latitude BETWEEN $%d AND $%d", n-3, n-2),
			fmt.Sprintf("longitude BETWEEN $%d AND $%d", n-1, n),
		)
	}

	query := `SELECT ` + stationColumns + ` FROM stations`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying stations: %w", err)
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		station, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, *station)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stations: %w", err)
	}
	return stations, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Station, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}

	row := s.db.QueryRow(ctx, `SELECT `+stationColumns+` FROM stations WHERE id = $1`, numericID)
	station, err := scanStation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return station, err
}

func (s *PostgresStore) Insert(ctx context.Context, record models.NormalizedRecord) (*models.Station, error) {
	key := record.LocationKey
	if key == "" {
		key = geo.LocationKey(record.Latitude, record.Longitude)
	}
	fuelTypesJSON, photosJSON, err := encodeLists(record)
	if err != nil {
		return nil, err
	}
	status := record.Status
	if status == "" {
		status = models.StatusPending
	}

	var accuracy *float64
	var capturedAt *time.Time
	if record.Fix != nil {
		accuracy = &record.Fix.AccuracyMeters
		capturedAt = &record.Fix.CapturedAt
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO stations (name, owner, email, phone, address, latitude, longitude,
			fuel_types, photos, status, location_key, fix_accuracy_m, fix_captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+stationColumns,
		record.Name, record.Owner, record.Email, record.Phone, record.Address,
		record.Latitude, record.Longitude, fuelTypesJSON, photosJSON, string(status), key,
		accuracy, capturedAt,
	)

	station, err := scanStation(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, NewLocationConflictError(key, s.locationHolder(ctx, key))
		}
		return nil, fmt.Errorf("inserting station: %w", err)
	}

	log.Debug().
		Str("station_id", station.ID).
		Str("location_key", key).
		Msg("Saved station to postgres")
	return station, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.Station, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}

	row := s.db.QueryRow(ctx,
		`UPDATE stations SET status = $2 WHERE id = $1 RETURNING `+stationColumns,
		numericID, string(status),
	)
	station, err := scanStation(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrNotFound
	case err != nil && isUniqueViolation(err):
		var key string
		if current, getErr := s.Get(ctx, id); getErr == nil {
			key = geo.LocationKey(current.Latitude, current.Longitude)
		}
		return nil, NewLocationConflictError(key, s.locationHolder(ctx, key))
	case err != nil:
		return nil, fmt.Errorf("updating station status: %w", err)
	}
	return station, nil
}

// locationHolder returns the id of the non-rejected station holding key, or "".
func (s *PostgresStore) locationHolder(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	var id int64
	err := s.db.QueryRow(ctx,
		`SELECT id FROM stations WHERE location_key = $1 AND status <> 'rejected'`, key,
	).Scan(&id)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func scanStation(row pgx.Row) (*models.Station, error) {
	var (
		id         int64
		station    models.Station
		fuelTypes  string
		photos     string
		status     string
		accuracy   *float64
		capturedAt *time.Time
	)
	err := row.Scan(&id, &station.Name, &station.Owner, &station.Email, &station.Phone,
		&station.Address, &station.Latitude, &station.Longitude, &fuelTypes, &photos,
		&status, &accuracy, &capturedAt, &station.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning station: %w", err)
	}

	station.ID = strconv.FormatInt(id, 10)
	station.Status = models.Status(status)
	station.CreatedAt = station.CreatedAt.UTC()
	if err := json.Unmarshal([]byte(fuelTypes), &station.FuelTypes); err != nil {
		return nil, fmt.Errorf("decoding fuel types of station %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(photos), &station.Photos); err != nil {
		return nil, fmt.Errorf("decoding photos of station %d: %w", id, err)
	}
	if station.Photos == nil {
		station.Photos = []string{}
	}
	if accuracy != nil && capturedAt != nil {
		station.Fix = &models.GeoFix{AccuracyMeters: *accuracy, CapturedAt: capturedAt.UTC()}
	}
	return &station, nil
}

func encodeLists(record models.NormalizedRecord) (string, string, error) {
	fuelTypes := record.FuelTypesJSON
	if fuelTypes == "" {
		encoded, err := json.Marshal(record.FuelTypes)
		if err != nil {
			return "", "", fmt.Errorf("encoding fuel types: %w", err)
		}
		fuelTypes = string(encoded)
	}
	photos := record.PhotosJSON
	if photos == "" {
		list := record.Photos
		if list == nil {
			list = []string{}
		}
		encoded, err := json.Marshal(list)
		if err != nil {
			return "", "", fmt.Errorf("encoding photos: %w", err)
		}
		photos = string(encoded)
	}
	return fuelTypes, photos, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
