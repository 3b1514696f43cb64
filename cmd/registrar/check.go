package main

import (
	"fmt"
	"strconv"

	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/bbernstein/fuelreg/backend-go/internal/registry"
)

type CheckCommand struct {
	File            string  `short:"f" long:"file"            description:"YAML file with candidates and approved stations" required:"yes"`
	MinSeparationKm float64 `short:"m" long:"min-separation"  env:"MIN_SEPARATION_KM" description:"Minimum distance between stations in km" default:"0.05"`
	ComparePending  bool    `short:"p" long:"compare-pending" description:"Treat earlier accepted candidates as pending stations to compare against"`
}

// Execute runs candidates in file order against the approved list. Accepted candidates
// join the comparison set as pending, so later entries see them with --compare-pending.
func (c *CheckCommand) Execute(_ []string) error {
	file, err := loadCandidateFile(c.File)
	if err != nil {
		return err
	}

	validator := registry.NewValidator(
		registry.WithMinSeparationKm(c.MinSeparationKm),
		registry.WithPendingComparison(c.ComparePending),
	)

	existing := append([]models.ApprovedStation(nil), file.Approved...)
	rejected := 0
	for i, candidate := range file.Candidates {
		record, err := validator.CheckAndNormalize(candidate, existing)
		if err != nil {
			rejected++
			fmt.Fprintf(stdout, "REJECT %-24q %s: %v\n", candidate.Name, registry.KindOf(err), err)
			continue
		}

		fmt.Fprintf(stdout, "OK     %-24q key=%s\n", record.Name, record.LocationKey)
		existing = append(existing, models.ApprovedStation{
			ID:        "candidate-" + strconv.Itoa(i+1),
			Latitude:  record.Latitude,
			Longitude: record.Longitude,
			Status:    record.Status,
		})
	}

	if rejected > 0 {
		return fmt.Errorf("%d of %d candidates rejected", rejected, len(file.Candidates))
	}
	return nil
}
