package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/internal/infrastructure/messaging"
	"github.com/alem-hub/student-tracker/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	channel  string
	messages [][]byte
	err      error
	closed   int
	calls    int
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.calls++
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.channel = channel
	f.messages = append(f.messages, message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Close() error {
	f.closed++
	return nil
}

func TestRecordingPublisher(t *testing.T) {
	p := messaging.NewRecordingPublisher()
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, shared.NewStudentAddedEvent("R1", "Asha")))
	require.NoError(t, p.Publish(ctx, shared.NewStudentDeletedEvent("R1")))
	assert.Equal(t, []shared.EventType{shared.EventStudentAdded, shared.EventStudentDeleted}, p.Types())
	assert.Len(t, p.Events(), 2)

	assert.ErrorIs(t, p.Publish(ctx, nil), messaging.ErrNilEvent)

	p.Reset()
	assert.Empty(t, p.Events())

	p.Err = errors.New("broker down")
	assert.Error(t, p.Publish(ctx, shared.NewStudentDeletedEvent("R2")))
	assert.Len(t, p.Events(), 1)
}

func TestNopPublisher(t *testing.T) {
	var p shared.EventPublisher = messaging.NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), shared.NewStudentDeletedEvent("R1")))
}

func TestRedisPublisher_Publish(t *testing.T) {
	client := &fakeRedis{}
	p, err := messaging.NewRedisPublisher(client, "tracker:events",
		messaging.WithIDGenerator(func() string { return "evt-1" }))
	require.NoError(t, err)

	event := shared.NewGradesRecordedEvent("R1", map[string]float64{"Math": 95, "Physics": 88}, 91.5)
	require.NoError(t, p.Publish(context.Background(), event))

	require.Len(t, client.messages, 1)
	assert.Equal(t, "tracker:events", client.channel)

	envelope, err := messaging.DecodeEnvelope(client.messages[0])
	require.NoError(t, err)
	assert.Equal(t, "evt-1", envelope.ID)
	assert.Equal(t, shared.EventGradesRecorded, envelope.Type)
	assert.Equal(t, "R1", envelope.AggregateID)

	var payload struct {
		RollNumber string             `json:"roll_number"`
		Grades     map[string]float64 `json:"grades"`
		Average    float64            `json:"average"`
	}
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, "R1", payload.RollNumber)
	assert.Equal(t, 91.5, payload.Average)
	assert.Equal(t, 88.0, payload.Grades["Physics"])

	snap := p.Metrics().Snapshot()
	assert.EqualValues(t, 1, snap.Published)
	assert.Zero(t, snap.Failed)
	assert.EqualValues(t, 1, p.Metrics().Published(shared.EventGradesRecorded))
}

func TestRedisPublisher_Failure(t *testing.T) {
	client := &fakeRedis{err: errors.New("connection refused")}
	p, err := messaging.NewRedisPublisher(client, "tracker:events")
	require.NoError(t, err)

	err = p.Publish(context.Background(), shared.NewStudentAddedEvent("R1", "Asha"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	snap := p.Metrics().Snapshot()
	assert.Zero(t, snap.Published)
	assert.EqualValues(t, 1, snap.Failed)
	assert.False(t, snap.LastFailure.IsZero())
}

func TestRedisPublisher_BreakerOpens(t *testing.T) {
	client := &fakeRedis{err: errors.New("connection refused")}
	p, err := messaging.NewRedisPublisher(client, "tracker:events",
		messaging.WithBreaker(circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2), circuitbreaker.WithTimeout(time.Hour))))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.Error(t, p.Publish(ctx, shared.NewStudentDeletedEvent("R1")))
	}

	err = p.Publish(ctx, shared.NewStudentDeletedEvent("R1"))
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 2, client.calls)
	assert.EqualValues(t, 3, p.Metrics().Snapshot().Failed)
}

func TestRedisPublisher_Close(t *testing.T) {
	client := &fakeRedis{}
	p, err := messaging.NewRedisPublisher(client, "tracker:events")
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, client.closed)

	err = p.Publish(context.Background(), shared.NewStudentDeletedEvent("R1"))
	assert.ErrorIs(t, err, messaging.ErrPublisherClosed)
}

func TestNewRedisPublisher_Validation(t *testing.T) {
	_, err := messaging.NewRedisPublisher(nil, "tracker:events")
	assert.Error(t, err)

	_, err = messaging.NewRedisPublisher(&fakeRedis{}, "")
	assert.Error(t, err)
}

func TestDecodeEnvelope(t *testing.T) {
	_, err := messaging.DecodeEnvelope([]byte("not json"))
	assert.Error(t, err)

	_, err = messaging.DecodeEnvelope([]byte(`{"id":"x"}`))
	assert.Error(t, err)

	env, err := messaging.DecodeEnvelope([]byte(`{"id":"x","type":"student.deleted","aggregate_id":"R9","payload":{}}`))
	require.NoError(t, err)
	assert.Equal(t, shared.EventStudentDeleted, env.Type)
	assert.Equal(t, "R9", env.AggregateID)
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "localhost:6379", messaging.RedisConfig{Host: "localhost", Port: 6379}.Addr())
}
