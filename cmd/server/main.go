package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/bbernstein/fuelreg/backend-go/internal/bootstrap"
	"github.com/bbernstein/fuelreg/backend-go/internal/config"
	"github.com/bbernstein/fuelreg/backend-go/pkg/graceful"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Addr            string        `short:"a" long:"addr"             env:"LISTEN_ADDR"      description:"Address to listen on"                default:":8080"`
	Store           string        `short:"s" long:"store"            env:"STORE_BACKEND"    description:"Station store backend"               choice:"memory" choice:"postgres" choice:"dynamodb" default:"memory"`
	MinSeparationKm float64       `short:"m" long:"min-separation"   env:"MIN_SEPARATION_KM" description:"Minimum distance between stations in km" default:"0.05"`
	ShutdownTimeout time.Duration `long:"shutdown-timeout"           env:"SHUTDOWN_TIMEOUT" description:"Time allowed for in-flight requests" default:"10s"`
}

func parseOptions(args []string) (*Options, error) {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return &opts, nil
}

func newServer(ctx context.Context, opts *Options) (*http.Server, *bootstrap.App, error) {
	cfg := config.LoadFromEnv()
	for _, opt := range []config.Option{
		config.WithListenAddr(opts.Addr),
		config.WithStoreBackend(opts.Store),
		config.WithMinSeparationKm(opts.MinSeparationKm),
	} {
		opt(cfg)
	}
	cfg.InitializeLogging()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           app.Handler.Routes(),
		ReadHeaderTimeout: cfg.HTTPTimeout,
	}
	return srv, app, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	srv, app, err := newServer(ctx, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize registry")
	}
	defer app.Close()

	log.Info().
		Str("addr", srv.Addr).
		Str("store", opts.Store).
		Msg("Web server started")

	if err := graceful.ListenAndServe(ctx, srv, opts.ShutdownTimeout); err != nil {
		log.Error().Err(err).Msg("Server failed")
	}
}
