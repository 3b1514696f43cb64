package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bbernstein/fuelreg/backend-go/internal/api"
	"github.com/bbernstein/fuelreg/backend-go/pkg/http/client"
	"github.com/rs/zerolog/log"
)

type SubmitCommand struct {
	File       string        `short:"f" long:"file"    description:"YAML file with candidates" required:"yes"`
	URL        string        `short:"u" long:"url"     env:"REGISTRY_URL" description:"Registry base URL" default:"http://localhost:8080"`
	Timeout    time.Duration `long:"timeout"           env:"HTTP_TIMEOUT" description:"Per-request timeout" default:"10s"`
	MaxRetries int           `long:"max-retries"       description:"Attempts per candidate on server errors" default:"3"`
}

func (c *SubmitCommand) Execute(_ []string) error {
	file, err := loadCandidateFile(c.File)
	if err != nil {
		return err
	}

	httpClient := client.New(client.Options{
		BaseURL:    strings.TrimRight(c.URL, "/"),
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
	})

	failed := 0
	for _, candidate := range file.Candidates {
		resp, err := httpClient.PostJSON(commandCtx, "/api/register", api.NewRegisterRequest(candidate))
		if err != nil {
			return fmt.Errorf("submitting %q: %w", candidate.Name, err)
		}

		var body api.RegisterResponse
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return fmt.Errorf("decoding response for %q (status %d): %w", candidate.Name, resp.StatusCode, err)
		}
		log.Debug().Str("name", candidate.Name).Int("status", resp.StatusCode).Msg("Candidate submitted")

		if body.Success {
			fmt.Fprintf(stdout, "CREATED %-24q id=%s\n", candidate.Name, body.StationID)
			continue
		}
		failed++
		fmt.Fprintf(stdout, "FAILED  %-24q %d %s\n", candidate.Name, resp.StatusCode, body.Error)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d candidates were not registered", failed, len(file.Candidates))
	}
	return nil
}
