package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bbernstein/fuelreg/backend-go/internal/api"
	"github.com/rs/zerolog/log"
)

// LambdaAdapter serves API Gateway proxy events through an http.Handler.
type LambdaAdapter struct {
	handler http.Handler
}

func NewLambdaAdapter(handler http.Handler) *LambdaAdapter {
	return &LambdaAdapter{handler: handler}
}

func (a *LambdaAdapter) HandleRequest(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if event.HTTPMethod == "" {
		event.HTTPMethod = http.MethodGet
	}

	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return api.Error("Invalid request body encoding", http.StatusBadRequest)
		}
		body = decoded
	}

	target := url.URL{Path: event.Path, RawQuery: eventQuery(event).Encode()}
	if target.Path == "" {
		target.Path = "/"
	}

	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, "http://localhost"+target.RequestURI(), bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create request")
		return api.Error("Failed to create request", http.StatusInternalServerError)
	}
	for key, value := range event.Headers {
		req.Header.Set(key, value)
	}
	for key, values := range event.MultiValueHeaders {
		req.Header[http.CanonicalHeaderKey(key)] = values
	}
	if ip := event.RequestContext.Identity.SourceIP; ip != "" {
		req.RemoteAddr = ip
	}

	// Create response writer to capture output
	w := &responseWriter{
		headers: make(http.Header),
		body:    &bytes.Buffer{},
		code:    http.StatusOK,
	}

	a.handler.ServeHTTP(w, req)

	headers := make(map[string]string, len(w.headers))
	for key, values := range w.headers {
		headers[key] = strings.Join(values, ",")
	}

	return events.APIGatewayProxyResponse{
		StatusCode: w.code,
		Headers:    headers,
		Body:       w.body.String(),
	}, nil
}

func eventQuery(event events.APIGatewayProxyRequest) url.Values {
	query := url.Values{}
	for key, value := range event.QueryStringParameters {
		query.Set(key, value)
	}
	for key, values := range event.MultiValueQueryStringParameters {
		query[key] = values
	}
	return query
}

// responseWriter implements http.ResponseWriter
type responseWriter struct {
	headers http.Header
	body    *bytes.Buffer
	code    int
}

func (w *responseWriter) Header() http.Header {
	return w.headers
}

func (w *responseWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.code = statusCode
}
