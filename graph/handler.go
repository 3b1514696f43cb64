package graph

import (
	"bytes"
	"context"
	"net/http"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	srv *handler.Server
}

var _ http.Handler = (*Handler)(nil)

func NewHandler(resolver *Resolver) *Handler {
	srv := handler.New(newExecutableSchema(resolver))

	// HTTP-only transports; mutations are rejected over GET by the transport.
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})

	srv.SetErrorPresenter(graphql.DefaultErrorPresenter)
	srv.SetRecoverFunc(graphql.DefaultRecover)

	return &Handler{srv: srv}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.srv.ServeHTTP(w, r)
}

// HandleRequest serves a GraphQL POST arriving through API Gateway.
func (h *Handler) HandleRequest(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if event.HTTPMethod == "" {
		event.HTTPMethod = http.MethodPost
	}
	if event.HTTPMethod != http.MethodPost {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusMethodNotAllowed,
			Body:       "Only POST method is allowed",
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, "http://localhost/graphql", bytes.NewBufferString(event.Body))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create request")
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"errors": ["Failed to create request"]}`,
		}, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range event.Headers {
		req.Header.Set(key, value)
	}

	w := &responseWriter{
		headers: make(http.Header),
		body:    &bytes.Buffer{},
		code:    http.StatusOK,
	}
	h.srv.ServeHTTP(w, req)

	return events.APIGatewayProxyResponse{
		StatusCode: w.code,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: w.body.String(),
	}, nil
}

// responseWriter captures a response for the Lambda proxy.
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
