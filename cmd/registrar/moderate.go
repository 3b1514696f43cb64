package main

import (
	"fmt"

	"github.com/bbernstein/fuelreg/backend-go/internal/bootstrap"
	"github.com/bbernstein/fuelreg/backend-go/internal/config"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
)

var newApp = bootstrap.New

type ModerateCommand struct {
	Args struct {
		StationID string `positional-arg-name:"station-id" description:"Station to update"`
		Status    string `positional-arg-name:"status" description:"pending, approved or rejected"`
	} `positional-args:"yes" required:"yes"`
}

// Execute updates the station through the registrar, so approvals re-check the
// separation rule and caches and events follow the change.
func (c *ModerateCommand) Execute(_ []string) error {
	status, err := models.ParseStatus(c.Args.Status)
	if err != nil {
		return err
	}

	app, err := newApp(commandCtx, config.LoadFromEnv())
	if err != nil {
		return fmt.Errorf("initializing registry: %w", err)
	}
	defer app.Close()

	updated, err := app.Registrar.UpdateStatus(commandCtx, c.Args.StationID, status)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s %s -> %s\n", updated.ID, updated.Name, updated.Status)
	return nil
}
