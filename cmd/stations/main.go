package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/bbernstein/fuelreg/backend-go/internal/api"
	"github.com/bbernstein/fuelreg/backend-go/internal/bootstrap"
	"github.com/bbernstein/fuelreg/backend-go/internal/config"
	"github.com/bbernstein/fuelreg/backend-go/internal/handler"
	"github.com/rs/zerolog/log"
)

var (
	lambdaStart = lambda.Start // Allow mocking of lambda.Start in tests
	adapter     *handler.LambdaAdapter
	initErr     error
	setupOnce   sync.Once
)

func init() {
	setupOnce.Do(func() {
		cfg := config.LoadFromEnv()
		cfg.InitializeLogging()

		app, err := bootstrap.New(context.Background(), cfg)
		if err != nil {
			initErr = err
			log.Error().Err(err).Msg("Failed to initialize registry")
			return
		}

		adapter = handler.NewLambdaAdapter(app.Handler.Routes())
	})
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if adapter == nil {
		log.Error().Err(initErr).Msg("Handler not initialized")
		return api.Error("Service unavailable", http.StatusServiceUnavailable)
	}
	return adapter.HandleRequest(ctx, request)
}

func main() {
	lambdaStart(handleRequest)
}
