// Command registrar checks, submits and moderates fuel station registrations.
package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/bbernstein/fuelreg/backend-go/internal/config"
	"github.com/bbernstein/fuelreg/backend-go/pkg/graceful"
	"github.com/jessevdk/go-flags"
)

var stdout io.Writer = os.Stdout

// commandCtx is canceled on SIGINT/SIGTERM while a command runs.
var commandCtx = context.Background()

type Options struct {
	LogLevel    string `short:"l" long:"log-level" env:"LOG_LEVEL" description:"Log level" default:"warn"`
	Environment string `long:"env"                 env:"ENV"       description:"Environment name, local enables console logs" default:"local"`

	Check    CheckCommand    `command:"check"    description:"Validate candidates from a YAML file offline"`
	Submit   SubmitCommand   `command:"submit"   description:"POST candidates from a YAML file to a running registry"`
	Moderate ModerateCommand `command:"moderate" description:"Change a station's status in the configured store"`
	Distance DistanceCommand `command:"distance" description:"Print the great-circle distance between two points"`
}

func newParser(opts *Options) *flags.Parser {
	parser := flags.NewParser(opts, flags.Default)
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		config.New(
			config.WithEnvironment(opts.Environment),
			config.WithLogLevel(opts.LogLevel),
		).InitializeLogging()
		return command.Execute(args)
	}
	return parser
}

func run(args []string) error {
	var opts Options
	_, err := newParser(&opts).ParseArgs(args)
	return err
}

func main() {
	ctx, cancel := graceful.Context(context.Background())
	commandCtx = ctx

	err := run(os.Args[1:])
	cancel()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
