// Package bootstrap assembles the registry from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/bbernstein/fuelreg/backend-go/graph"
	"github.com/bbernstein/fuelreg/backend-go/internal/cache"
	"github.com/bbernstein/fuelreg/backend-go/internal/config"
	"github.com/bbernstein/fuelreg/backend-go/internal/events"
	"github.com/bbernstein/fuelreg/backend-go/internal/handler"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/bbernstein/fuelreg/backend-go/internal/photos"
	"github.com/bbernstein/fuelreg/backend-go/internal/registry"
	"github.com/bbernstein/fuelreg/backend-go/internal/station"
	"github.com/bbernstein/fuelreg/backend-go/internal/store"
	"github.com/rs/zerolog/log"
)

type App struct {
	Config    *config.Config
	Store     models.StationStore
	Finder    *station.StationFinder
	Registrar *registry.Registrar
	Handler   *handler.StationsHandler
	GraphQL   *graph.Handler

	closers []func() error
}

// New builds every collaborator named by cfg. Close releases them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	stationStore, err := app.newStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = stationStore

	cacheCfg := config.GetCacheConfig()
	finderOpts := []station.Option{station.WithWorkers(cacheCfg.NearbyWorkers)}
	if cacheCfg.EnableLRUCache {
		lru, err := cache.NewStationLRU(cacheCfg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("creating station LRU: %w", err)
		}
		finderOpts = append(finderOpts, station.WithLRU(lru))
	}
	if cacheCfg.EnableSnapshot && cfg.SnapshotBucket != "" {
		s3Client, err := cache.NewS3Client(ctx)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("creating S3 client: %w", err)
		}
		finderOpts = append(finderOpts, station.WithS3Cache(
			cache.NewS3StationCache(s3Client, cfg.SnapshotBucket, cacheCfg.GetStationListTTL()),
		))
	}
	app.Finder = station.NewStationFinder(stationStore, cache.NewStationCache(cacheCfg), finderOpts...)

	validator := registry.NewValidator(
		registry.WithMinSeparationKm(cfg.MinSeparationKm),
		registry.WithPendingComparison(cfg.ComparePending),
	)
	registrarOpts := []registry.RegistrarOption{registry.WithCacheInvalidator(app.Finder)}
	if cfg.EventsEnabled() {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		app.closers = append(app.closers, publisher.Close)
		registrarOpts = append(registrarOpts, registry.WithPublisher(publisher))
	}
	app.Registrar = registry.NewRegistrar(stationStore, validator, registrarOpts...)

	app.GraphQL = graph.NewHandler(&graph.Resolver{
		StationFinder: app.Finder,
		Lister:        stationStore,
		Registrar:     app.Registrar,
	})

	handlerOpts := []handler.Option{handler.WithGraphQL(app.GraphQL)}
	if cfg.PhotosEnabled() {
		photoStore, err := newPhotoStore(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		handlerOpts = append(handlerOpts, handler.WithPhotoStore(photoStore))
	}
	app.Handler = handler.NewStationsHandler(app.Registrar, app.Finder, stationStore, handlerOpts...)

	log.Info().
		Str("store", cfg.StoreBackend).
		Float64("min_separation_km", cfg.MinSeparationKm).
		Bool("compare_pending", cfg.ComparePending).
		Bool("events", cfg.EventsEnabled()).
		Bool("photos", cfg.PhotosEnabled()).
		Msg("Registry initialized")

	return app, nil
}

func (a *App) newStore(ctx context.Context) (models.StationStore, error) {
	switch a.Config.StoreBackend {
	case config.StorePostgres:
		if a.Config.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store")
		}
		pool, err := store.NewPostgresPool(ctx, a.Config.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})

		pgStore := store.NewPostgresStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return pgStore, nil

	case config.StoreDynamoDB:
		client, err := store.NewDynamoClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating DynamoDB client: %w", err)
		}
		return store.NewDynamoStore(client, a.Config.DynamoTable), nil

	default:
		return store.NewMemoryStore(), nil
	}
}

func newPhotoStore(ctx context.Context, cfg *config.Config) (*photos.MinioStore, error) {
	client, err := photos.NewMinioClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		return nil, err
	}

	photoStore := photos.NewMinioStore(client, cfg.PhotoBucket)
	if err := photoStore.EnsureBucket(ctx, ""); err != nil {
		return nil, err
	}
	return photoStore, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Error during shutdown")
		}
	}
	a.closers = nil
}
