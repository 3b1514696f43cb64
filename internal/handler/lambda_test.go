package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLambdaAdapter_HandleRequest(t *testing.T) {
	finder := &mockStationFinder{
		findNearestStationsFn: func(ctx context.Context, lat, lon float64, limit int) ([]models.Station, error) {
			assert.Equal(t, 3, limit)
			return []models.Station{createTestStation("1")}, nil
		},
	}
	registrar := &mockRegistrar{
		registerFn: func(ctx context.Context, candidate models.StationCandidate) (*models.Station, error) {
			return &models.Station{ID: "9"}, nil
		},
	}
	adapter := NewLambdaAdapter(NewStationsHandler(registrar, finder, &mockLister{}).Routes())

	tests := []struct {
		name           string
		event          events.APIGatewayProxyRequest
		expectedStatus int
		expectedKey    string
	}{
		{
			name: "query parameters",
			event: events.APIGatewayProxyRequest{
				HTTPMethod:            http.MethodGet,
				Path:                  "/api/stations/nearby",
				QueryStringParameters: map[string]string{"lat": "40", "lon": "-74", "limit": "3"},
			},
			expectedStatus: http.StatusOK,
			expectedKey:    "stations",
		},
		{
			name: "multi value query parameters",
			event: events.APIGatewayProxyRequest{
				HTTPMethod:                      http.MethodGet,
				Path:                            "/api/stations/nearby",
				MultiValueQueryStringParameters: map[string][]string{"lat": {"40"}, "lon": {"-74"}, "limit": {"3"}},
			},
			expectedStatus: http.StatusOK,
			expectedKey:    "stations",
		},
		{
			name: "json body",
			event: events.APIGatewayProxyRequest{
				HTTPMethod: http.MethodPost,
				Path:       "/api/register",
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       validBody,
			},
			expectedStatus: http.StatusCreated,
			expectedKey:    "stationId",
		},
		{
			name: "base64 body",
			event: events.APIGatewayProxyRequest{
				HTTPMethod:      http.MethodPost,
				Path:            "/api/register",
				Body:            base64.StdEncoding.EncodeToString([]byte(validBody)),
				IsBase64Encoded: true,
			},
			expectedStatus: http.StatusCreated,
			expectedKey:    "stationId",
		},
		{
			name: "bad base64 body",
			event: events.APIGatewayProxyRequest{
				HTTPMethod:      http.MethodPost,
				Path:            "/api/register",
				Body:            "%%%",
				IsBase64Encoded: true,
			},
			expectedStatus: http.StatusBadRequest,
			expectedKey:    "error",
		},
		{
			name: "default method",
			event: events.APIGatewayProxyRequest{
				Path: "/healthz",
			},
			expectedStatus: http.StatusOK,
			expectedKey:    "status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := adapter.HandleRequest(context.Background(), tt.event)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Headers["Content-Type"])
			assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
			assert.Contains(t, body, tt.expectedKey)
		})
	}
}
