package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/bbernstein/fuelreg/backend-go/internal/geo"
	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultDynamoTable = "fuel-stations"

	kindStation       = "station"
	kindLocation      = "location"
	locationKeyPrefix = "loc#"
)

// DynamoDBClient defines the DynamoDB operations used by the store
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// stationItem is the DynamoDB representation of a station. Location lock items share
// the table under the "loc#<key>" id and point back at the holding station.
type stationItem struct {
	ID          string         `dynamodbav:"id"`
	Kind        string         `dynamodbav:"kind"`
	Name        string         `dynamodbav:"name"`
	Owner       string         `dynamodbav:"owner"`
	Email       string         `dynamodbav:"email"`
	Phone       string         `dynamodbav:"phone"`
	Address     string         `dynamodbav:"address"`
	Latitude    float64        `dynamodbav:"latitude"`
	Longitude   float64        `dynamodbav:"longitude"`
	FuelTypes   []string       `dynamodbav:"fuelTypes"`
	Photos      []string       `dynamodbav:"photos"`
	Status      string         `dynamodbav:"status"`
	LocationKey string         `dynamodbav:"locationKey"`
	Fix         *models.GeoFix `dynamodbav:"fix,omitempty"`
	CreatedAt   int64          `dynamodbav:"createdAt"`
}

type locationItem struct {
	ID        string `dynamodbav:"id"`
	Kind      string `dynamodbav:"kind"`
	StationID string `dynamodbav:"stationId"`
}

// DynamoStore persists stations in a single DynamoDB table keyed by "id".
type DynamoStore struct {
	client    DynamoDBClient
	tableName string
	now       func() time.Time
	newID     func() string
}

func NewDynamoStore(client DynamoDBClient, tableName string) *DynamoStore {
	if tableName == "" {
		tableName = DefaultDynamoTable
	}
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *DynamoStore) ListApproved(ctx context.Context, box *geo.BoundingBox) ([]models.ApprovedStation, error) {
	stations, err := s.List(ctx, models.ListFilter{
		Statuses: []models.Status{models.StatusApproved},
		Box:      box,
	})
	if err != nil {
		return nil, err
	}
	approved := make([]models.ApprovedStation, len(stations))
	for i, station := range stations {
		approved[i] = station.Comparable()
	}
	return approved, nil
}

func (s *DynamoStore) List(ctx context.Context, filter models.ListFilter) ([]models.Station, error) {
	input := buildScanInput(s.tableName, filter)

	var stations []models.Station
	for {
		output, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scanning stations from DynamoDB: %w", err)
		}

		for _, raw := range output.Items {
			var item stationItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("unmarshaling station item: %w", err)
			}
			stations = append(stations, item.toStation())
		}

		if len(output.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	sort.Slice(stations, func(i, j int) bool {
		if !stations[i].CreatedAt.Equal(stations[j].CreatedAt) {
			return stations[i].CreatedAt.Before(stations[j].CreatedAt)
		}
		return stations[i].ID < stations[j].ID
	})

	log.Debug().Int("station_count", len(stations)).Msg("Scanned stations from DynamoDB")
	return stations, nil
}

func (s *DynamoStore) Get(ctx context.Context, id string) (*models.Station, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting station from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, ErrNotFound
	}

	var item stationItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling station item: %w", err)
	}
	if item.Kind != kindStation {
		return nil, ErrNotFound
	}

	station := item.toStation()
	return &station, nil
}

// Insert writes the station and its location lock in one transaction, so a second
// registration for the same location key fails atomically.
func (s *DynamoStore) Insert(ctx context.Context, record models.NormalizedRecord) (*models.Station, error) {
	key := record.LocationKey
	if key == "" {
		key = geo.LocationKey(record.Latitude, record.Longitude)
	}
	record.LocationKey = key

	station := models.NewStation(s.newID(), record, s.now().UTC().Truncate(time.Second))

	stationAV, err := attributevalue.MarshalMap(newStationItem(station, key))
	if err != nil {
		return nil, fmt.Errorf("marshaling station item: %w", err)
	}
	lockAV, err := attributevalue.MarshalMap(locationItem{
		ID:        locationKeyPrefix + key,
		Kind:      kindLocation,
		StationID: station.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling location item: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(s.tableName),
					Item:                lockAV,
					ConditionExpression: aws.String("attribute_not_exists(id)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(s.tableName),
					Item:                stationAV,
					ConditionExpression: aws.String("attribute_not_exists(id)"),
				},
			},
		},
	})
	if err != nil {
		if lockConflict(err) {
			return nil, NewLocationConflictError(key, s.lockHolder(ctx, key))
		}
		return nil, fmt.Errorf("putting station in DynamoDB: %w", err)
	}

	log.Debug().
		Str("station_id", station.ID).
		Str("location_key", key).
		Msg("Saved station to DynamoDB")

	return &station, nil
}

func (s *DynamoStore) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.Station, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	key := geo.LocationKey(current.Latitude, current.Longitude)

	switch {
	case current.Status == models.StatusRejected && status != models.StatusRejected:
		// Re-claim the location lock together with the status change.
		lockAV, err := attributevalue.MarshalMap(locationItem{
			ID:        locationKeyPrefix + key,
			Kind:      kindLocation,
			StationID: id,
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling location item: %w", err)
		}
		_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: []types.TransactWriteItem{
				{
					Put: &types.Put{
						TableName:           aws.String(s.tableName),
						Item:                lockAV,
						ConditionExpression: aws.String("attribute_not_exists(id)"),
					},
				},
				{
					Update: &types.Update{
						TableName:                 aws.String(s.tableName),
						Key:                       idKey(id),
						UpdateExpression:          aws.String("SET #status = :status"),
						ConditionExpression:       aws.String("attribute_exists(id)"),
						ExpressionAttributeNames:  map[string]string{"#status": "status"},
						ExpressionAttributeValues: map[string]types.AttributeValue{":status": &types.AttributeValueMemberS{Value: string(status)}},
					},
				},
			},
		})
		if err != nil {
			if lockConflict(err) {
				return nil, NewLocationConflictError(key, s.lockHolder(ctx, key))
			}
			return nil, fmt.Errorf("updating station status in DynamoDB: %w", err)
		}

	default:
		if err := s.updateStatusItem(ctx, id, status); err != nil {
			return nil, err
		}
		if status == models.StatusRejected && current.Status != models.StatusRejected {
			s.releaseLock(ctx, key, id)
		}
	}

	current.Status = status
	return current, nil
}

func (s *DynamoStore) updateStatusItem(ctx context.Context, id string, status models.Status) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      idKey(id),
		UpdateExpression:         aws.String("SET #status = :status"),
		ConditionExpression:      aws.String("attribute_exists(id)"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return ErrNotFound
		}
		return fmt.Errorf("updating station status in DynamoDB: %w", err)
	}
	return nil
}

// releaseLock removes the location lock if it still belongs to stationID.
func (s *DynamoStore) releaseLock(ctx context.Context, key, stationID string) {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 idKey(locationKeyPrefix + key),
		ConditionExpression: aws.String("stationId = :stationId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":stationId": &types.AttributeValueMemberS{Value: stationID},
		},
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if !errors.As(err, &conditionErr) {
			log.Warn().Err(err).Str("location_key", key).Msg("Failed to release location lock")
		}
	}
}

// lockHolder looks up the station id holding a location lock. Returns "" when unknown.
func (s *DynamoStore) lockHolder(ctx context.Context, key string) string {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            idKey(locationKeyPrefix + key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil || result.Item == nil {
		return ""
	}
	var lock locationItem
	if err := attributevalue.UnmarshalMap(result.Item, &lock); err != nil {
		return ""
	}
	return lock.StationID
}

// lockConflict reports whether a transaction was canceled by the location lock condition.
func lockConflict(err error) bool {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return false
	}
	if len(canceled.CancellationReasons) == 0 {
		return false
	}
	code := canceled.CancellationReasons[0].Code
	return code != nil && *code == "ConditionalCheckFailed"
}

func buildScanInput(tableName string, filter models.ListFilter) *dynamodb.ScanInput {
	conditions := []string{"#kind = :kind"}
	names := map[string]string{"#kind": "kind"}
	values := map[string]types.AttributeValue{
		":kind": &types.AttributeValueMemberS{Value: kindStation},
	}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholder := fmt.Sprintf(":status%d", i)
			placeholders[i] = placeholder
			values[placeholder] = &types.AttributeValueMemberS{Value: string(status)}
		}
		names["#status"] = "status"
		conditions = append(conditions, fmt.Sprintf("#status IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.Box != nil {
		conditions = append(conditions,
			"latitude BETWEEN :minLat AND :maxLat",
			"longitude BETWEEN :minLon AND :maxLon",
		)
		values[":minLat"] = numberValue(filter.Box.MinLat)
		values[":maxLat"] = numberValue(filter.Box.MaxLat)
		values[":minLon"] = numberValue(filter.Box.MinLon)
		values[":maxLon"] = numberValue(filter.Box.MaxLon)
	}

	return &dynamodb.ScanInput{
		TableName:                 aws.String(tableName),
		FilterExpression:          aws.String(strings.Join(conditions, " AND ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConsistentRead:            aws.Bool(true),
	}
}

func newStationItem(station models.Station, locationKey string) stationItem {
	return stationItem{
		ID:          station.ID,
		Kind:        kindStation,
		Name:        station.Name,
		Owner:       station.Owner,
		Email:       station.Email,
		Phone:       station.Phone,
		Address:     station.Address,
		Latitude:    station.Latitude,
		Longitude:   station.Longitude,
		FuelTypes:   station.FuelTypes,
		Photos:      station.Photos,
		Status:      string(station.Status),
		LocationKey: locationKey,
		Fix:         station.Fix,
		CreatedAt:   station.CreatedAt.Unix(),
	}
}

func (i stationItem) toStation() models.Station {
	photos := i.Photos
	if photos == nil {
		photos = []string{}
	}
	return models.Station{
		ID:        i.ID,
		Name:      i.Name,
		Owner:     i.Owner,
		Email:     i.Email,
		Phone:     i.Phone,
		Address:   i.Address,
		Latitude:  i.Latitude,
		Longitude: i.Longitude,
		FuelTypes: i.FuelTypes,
		Photos:    photos,
		Status:    models.Status(i.Status),
		Fix:       i.Fix,
		CreatedAt: time.Unix(i.CreatedAt, 0).UTC(),
	}
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func numberValue(v float64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}
}
