package graph

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/bbernstein/fuelreg/backend-go/internal/api"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

//go:embed schema.graphqls
var schemaSource string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})

var errIntrospectionDisabled = errors.New("introspection disabled")

// executableSchema resolves validated operations against the Resolver. Parsing,
// validation and variable coercion are done by the gqlgen server.
type executableSchema struct {
	// Provides Complexity, which is only called when a complexity limit is configured.
	graphql.ExecutableSchema

	resolver *Resolver
}

func newExecutableSchema(resolver *Resolver) *executableSchema {
	return &executableSchema{resolver: resolver}
}

func (e *executableSchema) Schema() *ast.Schema {
	return parsedSchema
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)
	first := true

	return func(ctx context.Context) *graphql.Response {
		if !first {
			return nil
		}
		first = false

		ec := &executionContext{opCtx: opCtx, resolver: e.resolver}
		var data graphql.Marshaler
		switch opCtx.Operation.Operation {
		case ast.Query:
			data = ec.resolveRoot(ctx, "Query", ec.resolveQueryField)
		case ast.Mutation:
			data = ec.resolveRoot(ctx, "Mutation", ec.resolveMutationField)
		default:
			return graphql.ErrorResponse(ctx, "unsupported GraphQL operation")
		}

		var buf bytes.Buffer
		data.MarshalGQL(&buf)
		return &graphql.Response{
			Data:   buf.Bytes(),
			Errors: ec.errors,
		}
	}
}

type fieldResolver func(ctx context.Context, field graphql.CollectedField) (graphql.Marshaler, error)

type executionContext struct {
	opCtx    *graphql.OperationContext
	resolver *Resolver
	errors   gqlerror.List
}

// resolveRoot runs the root fields in document order. A failing field is reported
// on its path and resolves to null.
func (ec *executionContext) resolveRoot(ctx context.Context, typeName string, resolve fieldResolver) graphql.Marshaler {
	fields := graphql.CollectFields(ec.opCtx, ec.opCtx.Operation.SelectionSet, []string{typeName})
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		if field.Name == "__typename" {
			out.Values[i] = graphql.MarshalString(typeName)
			continue
		}

		value, err := resolve(ctx, field)
		if err != nil {
			ec.errors = append(ec.errors, &gqlerror.Error{
				Message: err.Error(),
				Path:    ast.Path{ast.PathName(field.Alias)},
			})
			out.Values[i] = graphql.Null
			continue
		}
		out.Values[i] = value
	}
	return out
}

func (ec *executionContext) resolveQueryField(ctx context.Context, field graphql.CollectedField) (graphql.Marshaler, error) {
	args := field.ArgumentMap(ec.opCtx.Variables)

	switch field.Name {
	case "station":
		found, err := ec.resolver.Station(ctx, argString(args["id"]))
		if err != nil {
			return nil, err
		}
		if found == nil {
			return graphql.Null, nil
		}
		return ec.marshalStation(field.Selections, *found, false), nil

	case "stations":
		statuses, err := argStatuses(args["status"])
		if err != nil {
			return nil, err
		}
		stations, err := ec.resolver.Stations(ctx, statuses)
		if err != nil {
			return nil, err
		}
		return ec.marshalStations(field.Selections, stations, false), nil

	case "nearbyStations":
		lat, err := argFloat(args["latitude"])
		if err != nil {
			return nil, err
		}
		lon, err := argFloat(args["longitude"])
		if err != nil {
			return nil, err
		}
		limit, err := argOptionalInt(args["limit"])
		if err != nil {
			return nil, err
		}
		stations, err := ec.resolver.NearbyStations(ctx, lat, lon, limit)
		if err != nil {
			return nil, err
		}
		return ec.marshalStations(field.Selections, stations, true), nil

	case "__schema", "__type":
		return nil, errIntrospectionDisabled
	}
	return nil, fmt.Errorf("unknown query field %q", field.Name)
}

func (ec *executionContext) resolveMutationField(ctx context.Context, field graphql.CollectedField) (graphql.Marshaler, error) {
	args := field.ArgumentMap(ec.opCtx.Variables)

	switch field.Name {
	case "registerStation":
		candidate, err := candidateFromInput(args["input"])
		if err != nil {
			return nil, err
		}
		result, err := ec.resolver.RegisterStation(ctx, candidate)
		if err != nil {
			return nil, err
		}
		return ec.marshalRegisterResult(field.Selections, result), nil
	}
	return nil, fmt.Errorf("unknown mutation field %q", field.Name)
}

func (ec *executionContext) marshalStations(sel ast.SelectionSet, stations []models.Station, withDistance bool) graphql.Marshaler {
	out := make(graphql.Array, len(stations))
	for i, s := range stations {
		out[i] = ec.marshalStation(sel, s, withDistance)
	}
	return out
}

func (ec *executionContext) marshalStation(sel ast.SelectionSet, s models.Station, withDistance bool) graphql.Marshaler {
	fields := graphql.CollectFields(ec.opCtx, sel, []string{"Station"})
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = graphql.MarshalString("Station")
		case "id":
			out.Values[i] = graphql.MarshalID(s.ID)
		case "name":
			out.Values[i] = graphql.MarshalString(s.Name)
		case "owner":
			out.Values[i] = graphql.MarshalString(s.Owner)
		case "email":
			out.Values[i] = graphql.MarshalString(s.Email)
		case "phone":
			out.Values[i] = graphql.MarshalString(s.Phone)
		case "address":
			out.Values[i] = graphql.MarshalString(s.Address)
		case "latitude":
			out.Values[i] = graphql.MarshalFloat(s.Latitude)
		case "longitude":
			out.Values[i] = graphql.MarshalFloat(s.Longitude)
		case "fuelTypes":
			out.Values[i] = marshalStrings(s.FuelTypes)
		case "photos":
			out.Values[i] = marshalStrings(s.Photos)
		case "status":
			out.Values[i] = graphql.MarshalString(strings.ToUpper(string(s.Status)))
		case "createdAt":
			out.Values[i] = graphql.MarshalString(s.CreatedAt.UTC().Format(time.RFC3339))
		case "distanceKm":
			if withDistance {
				out.Values[i] = graphql.MarshalFloat(s.Distance)
			} else {
				out.Values[i] = graphql.Null
			}
		default:
			out.Values[i] = graphql.Null
		}
	}
	return out
}

func (ec *executionContext) marshalRegisterResult(sel ast.SelectionSet, r *api.RegisterResponse) graphql.Marshaler {
	fields := graphql.CollectFields(ec.opCtx, sel, []string{"RegisterResult"})
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = graphql.MarshalString("RegisterResult")
		case "success":
			out.Values[i] = graphql.MarshalBoolean(r.Success)
		case "stationId":
			out.Values[i] = optionalID(r.StationID)
		case "error":
			out.Values[i] = optionalString(r.Error)
		case "field":
			out.Values[i] = optionalString(r.Field)
		case "conflictingStationId":
			out.Values[i] = optionalID(r.ConflictingStationID)
		case "distanceMeters":
			if r.DistanceMeters != nil {
				out.Values[i] = graphql.MarshalFloat(*r.DistanceMeters)
			} else {
				out.Values[i] = graphql.Null
			}
		default:
			out.Values[i] = graphql.Null
		}
	}
	return out
}

func marshalStrings(values []string) graphql.Marshaler {
	out := make(graphql.Array, len(values))
	for i, v := range values {
		out[i] = graphql.MarshalString(v)
	}
	return out
}

func optionalString(s string) graphql.Marshaler {
	if s == "" {
		return graphql.Null
	}
	return graphql.MarshalString(s)
}

func optionalID(s string) graphql.Marshaler {
	if s == "" {
		return graphql.Null
	}
	return graphql.MarshalID(s)
}

// candidateFromInput converts a coerced StationInput object. Required fields have
// already been checked against the schema.
func candidateFromInput(raw any) (models.StationCandidate, error) {
	input, ok := raw.(map[string]any)
	if !ok {
		return models.StationCandidate{}, fmt.Errorf("input: expected an object, got %T", raw)
	}

	lat, err := argFloat(input["latitude"])
	if err != nil {
		return models.StationCandidate{}, fmt.Errorf("input.latitude: %w", err)
	}
	lon, err := argFloat(input["longitude"])
	if err != nil {
		return models.StationCandidate{}, fmt.Errorf("input.longitude: %w", err)
	}

	return models.StationCandidate{
		Name:      argString(input["name"]),
		Owner:     argString(input["owner"]),
		Email:     argString(input["email"]),
		Phone:     argString(input["phone"]),
		Address:   argString(input["address"]),
		Latitude:  lat,
		Longitude: lon,
		FuelTypes: argStrings(input["fuelTypes"]),
		Photos:    argStrings(input["photos"]),
	}, nil
}

func argString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func argStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, argString(item))
	}
	return out
}

func argStatuses(v any) ([]models.Status, error) {
	var statuses []models.Status
	for _, raw := range argStrings(v) {
		status, err := models.ParseStatus(strings.ToLower(raw))
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func argFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func argOptionalInt(v any) (*int, error) {
	var n int
	switch i := v.(type) {
	case nil:
		return nil, nil
	case int64:
		n = int(i)
	case int:
		n = i
	case float64:
		n = int(i)
	case json.Number:
		parsed, err := i.Int64()
		if err != nil {
			return nil, err
		}
		n = int(parsed)
	default:
		return nil, fmt.Errorf("expected an integer, got %T", v)
	}
	return &n, nil
}
