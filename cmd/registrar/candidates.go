package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"gopkg.in/yaml.v3"
)

// candidateFile is the YAML document read by check and submit.
//
//	approved:
//	  - {id: "1", latitude: 40.0, longitude: -74.0}
//	candidates:
//	  - name: Harbor Fuel
//	    ...
type candidateFile struct {
	Approved   []models.ApprovedStation  `yaml:"approved"`
	Candidates []models.StationCandidate `yaml:"candidates"`
}

func loadCandidateFile(path string) (*candidateFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening candidate file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)

	var file candidateFile
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("candidate file %s is empty", path)
		}
		return nil, fmt.Errorf("parsing candidate file %s: %w", path, err)
	}
	if len(file.Candidates) == 0 {
		return nil, fmt.Errorf("candidate file %s has no candidates", path)
	}

	for i := range file.Approved {
		if file.Approved[i].Status == "" {
			file.Approved[i].Status = models.StatusApproved
		}
	}
	return &file, nil
}
