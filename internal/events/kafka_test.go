package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bbernstein/fuelreg/backend-go/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWriter records messages instead of sending them to a broker.
type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	writeErr error
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func testStation() models.Station {
	return models.Station{
		ID:        "17",
		Name:      "Harbor Fuel",
		Latitude:  40.0,
		Longitude: -74.0,
		Status:    models.StatusPending,
	}
}

func TestKafkaPublisherPublish(t *testing.T) {
	writer := &mockWriter{}
	publisher := NewKafkaPublisherWithWriter(writer, "stations")

	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	event := NewStationRegistered(testStation(), at)

	err := publisher.Publish(context.Background(), event)
	require.NoError(t, err)

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "17", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, TypeStationRegistered, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, models.StatusPending, decoded.Status)
	assert.Equal(t, at, decoded.OccurredAt)
}

func TestKafkaPublisherWriteError(t *testing.T) {
	writer := &mockWriter{writeErr: errors.New("broker unavailable")}
	publisher := NewKafkaPublisherWithWriter(writer, "stations")

	err := publisher.Publish(context.Background(), NewStationRegistered(testStation(), time.Now()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
	assert.Contains(t, err.Error(), "stations")
}

func TestKafkaPublisherClose(t *testing.T) {
	writer := &mockWriter{}
	publisher := NewKafkaPublisherWithWriter(writer, "stations")

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestNewStatusChanged(t *testing.T) {
	station := testStation()
	station.Status = models.StatusApproved

	event := NewStatusChanged(station, models.StatusPending, time.Now())

	assert.Equal(t, TypeStatusChanged, event.Type)
	assert.Equal(t, models.StatusApproved, event.Status)
	assert.Equal(t, models.StatusPending, event.PreviousStatus)
	assert.NotEmpty(t, event.ID)
}

func TestNopPublisher(t *testing.T) {
	var publisher Publisher = NopPublisher{}

	assert.NoError(t, publisher.Publish(context.Background(), Event{}))
	assert.NoError(t, publisher.Close())
}
