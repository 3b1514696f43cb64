package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bbernstein/fuelreg/backend-go/internal/events"
	"github.com/bbernstein/fuelreg/backend-go/internal/geo"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/bbernstein/fuelreg/backend-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mu         sync.Mutex
	events     []events.Event
	publishErr error
}

func (m *mockPublisher) Publish(_ context.Context, event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type mockInvalidator struct {
	ids []string
}

func (m *mockInvalidator) Invalidate(_ context.Context, stationID string) {
	m.ids = append(m.ids, stationID)
}

// failingStore wraps a MemoryStore and injects errors.
type failingStore struct {
	*store.MemoryStore
	listErr   error
	insertErr error
}

func (f *failingStore) ListApproved(ctx context.Context, box *geo.BoundingBox) ([]models.ApprovedStation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MemoryStore.ListApproved(ctx, box)
}

func (f *failingStore) Insert(ctx context.Context, record models.NormalizedRecord) (*models.Station, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	return f.MemoryStore.Insert(ctx, record)
}

func seededStation(id string, lat, lon float64, status models.Status) models.Station {
	return models.Station{
		ID:        id,
		Name:      "Seed " + id,
		Latitude:  lat,
		Longitude: lon,
		FuelTypes: []string{"diesel"},
		Status:    status,
	}
}

func TestRegistrarRegister(t *testing.T) {
	memory := store.NewMemoryStore()
	publisher := &mockPublisher{}
	registrar := NewRegistrar(memory, NewValidator(), WithPublisher(publisher))

	station, err := registrar.Register(context.Background(), createTestCandidate(40.0, -74.0))
	require.NoError(t, err)

	assert.Equal(t, "1", station.ID)
	assert.Equal(t, models.StatusPending, station.Status)
	assert.False(t, station.CreatedAt.IsZero())

	stored, err := memory.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Harbor Fuel", stored.Name)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.TypeStationRegistered, publisher.events[0].Type)
	assert.Equal(t, "1", publisher.events[0].StationID)
}

func TestRegistrarRejectsNearApproved(t *testing.T) {
	memory := store.NewMemoryStore()
	memory.Seed(seededStation("1", 40.0, -74.0, models.StatusApproved))
	publisher := &mockPublisher{}
	registrar := NewRegistrar(memory, NewValidator(), WithPublisher(publisher))

	_, err := registrar.Register(context.Background(), createTestCandidate(40.0, -74.00001))

	var duplicate *DuplicateNearbyError
	require.True(t, errors.As(err, &duplicate))
	assert.Equal(t, "1", duplicate.StationID)

	all, err := memory.List(context.Background(), models.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Empty(t, publisher.events)
}

func TestRegistrarInvalidInputSkipsStore(t *testing.T) {
	failing := &failingStore{MemoryStore: store.NewMemoryStore(), listErr: errors.New("must not be called")}
	registrar := NewRegistrar(failing, nil)

	candidate := createTestCandidate(40.0, -74.0)
	candidate.Name = ""
	_, err := registrar.Register(context.Background(), candidate)

	assert.Equal(t, RejectionInvalidInput, KindOf(err))
}

func TestRegistrarConcurrentSameLocation(t *testing.T) {
	memory := store.NewMemoryStore()
	registrar := NewRegistrar(memory, NewValidator())

	const goroutines = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  int
		duplicate int
	)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := registrar.Register(context.Background(), createTestCandidate(40.0, -74.0))
			mu.Lock()
			defer mu.Unlock()
			switch KindOf(err) {
			case RejectionNone:
				assert.NoError(t, err)
				accepted++
			case RejectionDuplicateNearby:
				duplicate++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, goroutines-1, duplicate)

	all, err := memory.List(context.Background(), models.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRegistrarLocationConflictReportsDistance(t *testing.T) {
	memory := store.NewMemoryStore()
	memory.Seed(seededStation("9", 40.0, -74.0, models.StatusPending))
	registrar := NewRegistrar(memory, NewValidator())

	_, err := registrar.Register(context.Background(), createTestCandidate(40.00002, -74.0))

	var duplicate *DuplicateNearbyError
	require.True(t, errors.As(err, &duplicate))
	assert.Equal(t, "9", duplicate.StationID)
	assert.InDelta(t, 0.0022, duplicate.DistanceKm, 0.0001)

	var conflict *store.LocationConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestRegistrarPendingComparison(t *testing.T) {
	memory := store.NewMemoryStore()
	memory.Seed(seededStation("3", 40.0, -74.0, models.StatusPending))
	registrar := NewRegistrar(memory, NewValidator(WithPendingComparison(true)))

	_, err := registrar.Register(context.Background(), createTestCandidate(northOf(40.0, 0.03), -74.0))

	var duplicate *DuplicateNearbyError
	require.True(t, errors.As(err, &duplicate))
	assert.Equal(t, "3", duplicate.StationID)
	assert.InDelta(t, 0.03, duplicate.DistanceKm, 1e-9)
}

func TestRegistrarStoreErrors(t *testing.T) {
	tests := []struct {
		name    string
		store   *failingStore
		wantMsg string
	}{
		{
			name:    "list failure",
			store:   &failingStore{MemoryStore: store.NewMemoryStore(), listErr: errors.New("connection reset")},
			wantMsg: "listing approved stations",
		},
		{
			name:    "insert failure",
			store:   &failingStore{MemoryStore: store.NewMemoryStore(), insertErr: errors.New("disk full")},
			wantMsg: "inserting station",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registrar := NewRegistrar(tt.store, NewValidator())

			_, err := registrar.Register(context.Background(), createTestCandidate(40.0, -74.0))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, RejectionNone, KindOf(err))
		})
	}
}

func TestRegistrarPublishFailureKeepsRegistration(t *testing.T) {
	memory := store.NewMemoryStore()
	registrar := NewRegistrar(memory, NewValidator(), WithPublisher(&mockPublisher{publishErr: errors.New("no broker")}))

	station, err := registrar.Register(context.Background(), createTestCandidate(40.0, -74.0))

	require.NoError(t, err)
	assert.Equal(t, "1", station.ID)
}

func TestRegistrarUpdateStatus(t *testing.T) {
	fixed := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	t.Run("approve pending station", func(t *testing.T) {
		memory := store.NewMemoryStore()
		memory.Seed(seededStation("1", 40.0, -74.0, models.StatusPending))
		publisher := &mockPublisher{}
		invalidator := &mockInvalidator{}
		registrar := NewRegistrar(memory, NewValidator(), WithPublisher(publisher), WithCacheInvalidator(invalidator))
		registrar.now = func() time.Time { return fixed }

		updated, err := registrar.UpdateStatus(context.Background(), "1", models.StatusApproved)
		require.NoError(t, err)

		assert.Equal(t, models.StatusApproved, updated.Status)
		assert.Equal(t, []string{"1"}, invalidator.ids)
		require.Len(t, publisher.events, 1)
		assert.Equal(t, events.TypeStatusChanged, publisher.events[0].Type)
		assert.Equal(t, models.StatusPending, publisher.events[0].PreviousStatus)
		assert.Equal(t, fixed, publisher.events[0].OccurredAt)
	})

	t.Run("approval blocked by nearby approved station", func(t *testing.T) {
		memory := store.NewMemoryStore()
		memory.Seed(
			seededStation("1", 40.0, -74.0, models.StatusApproved),
			seededStation("2", northOf(40.0, 0.02), -74.0, models.StatusPending),
		)
		registrar := NewRegistrar(memory, NewValidator())

		_, err := registrar.UpdateStatus(context.Background(), "2", models.StatusApproved)

		var duplicate *DuplicateNearbyError
		require.True(t, errors.As(err, &duplicate))
		assert.Equal(t, "1", duplicate.StationID)

		unchanged, err := memory.Get(context.Background(), "2")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, unchanged.Status)
	})

	t.Run("pending stations in adjacent cells cannot both be approved", func(t *testing.T) {
		memory := store.NewMemoryStore()
		memory.Seed(
			seededStation("1", 40.0, -74.0, models.StatusPending),
			seededStation("2", northOf(40.0, 0.02), -74.0, models.StatusPending),
		)
		registrar := NewRegistrar(memory, NewValidator())
		ctx := context.Background()

		_, err := registrar.UpdateStatus(ctx, "1", models.StatusApproved)
		require.NoError(t, err)

		_, err = registrar.UpdateStatus(ctx, "2", models.StatusApproved)
		assert.Equal(t, RejectionDuplicateNearby, KindOf(err))
	})

	t.Run("re-approving is a no-op event wise", func(t *testing.T) {
		memory := store.NewMemoryStore()
		memory.Seed(seededStation("1", 40.0, -74.0, models.StatusApproved))
		publisher := &mockPublisher{}
		registrar := NewRegistrar(memory, NewValidator(), WithPublisher(publisher))

		_, err := registrar.UpdateStatus(context.Background(), "1", models.StatusApproved)
		require.NoError(t, err)
		assert.Empty(t, publisher.events)
	})

	t.Run("unknown station", func(t *testing.T) {
		registrar := NewRegistrar(store.NewMemoryStore(), NewValidator())

		_, err := registrar.UpdateStatus(context.Background(), "404", models.StatusApproved)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("invalid status", func(t *testing.T) {
		registrar := NewRegistrar(store.NewMemoryStore(), NewValidator())

		_, err := registrar.UpdateStatus(context.Background(), "1", models.Status("archived"))
		assert.Equal(t, RejectionInvalidInput, KindOf(err))
	})
}
