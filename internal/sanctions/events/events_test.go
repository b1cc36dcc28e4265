package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pldft/internal/sanctions/models"
)

type producedRecord struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	records []producedRecord
	err     error
}

func (f *fakeProducer) Produce(_ context.Context, topic string, key, value []byte) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, producedRecord{topic: topic, key: string(key), value: value})
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	producer := &fakeProducer{}
	pub := NewKafkaPublisher(producer, WithTopics("sync", "anomaly"), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, pub.PublishSync(ctx, models.SyncReport{Source: models.SourceSAT69B, Created: 2, TotalActive: 2}))
	conflict := models.Conflict{StrongKey: "AAA010101AAA", ProfileIDs: []uuid.UUID{uuid.New(), uuid.New()}, RecordIDs: []int64{1, 2}}
	require.NoError(t, pub.PublishConflict(ctx, conflict))

	require.Len(t, producer.records, 2)
	assert.Equal(t, "sync", producer.records[0].topic)
	assert.Equal(t, models.SourceSAT69B, producer.records[0].key)
	assert.Equal(t, "anomaly", producer.records[1].topic)
	assert.Equal(t, "AAA010101AAA", producer.records[1].key)

	var env Envelope
	require.NoError(t, json.Unmarshal(producer.records[0].value, &env))
	assert.Equal(t, TypeSyncCompleted, env.Type)
	assert.True(t, now.Equal(env.OccurredAt))

	var report models.SyncReport
	require.NoError(t, json.Unmarshal(env.Payload, &report))
	assert.Equal(t, 2, report.Created)
}

func TestKafkaPublisherPropagatesProducerError(t *testing.T) {
	boom := errors.New("broker down")
	pub := NewKafkaPublisher(&fakeProducer{err: boom})
	assert.ErrorIs(t, pub.PublishSync(context.Background(), models.SyncReport{Source: "A"}), boom)
}

func TestMemoryPublisher(t *testing.T) {
	pub := NewMemoryPublisher()
	ctx := context.Background()
	require.NoError(t, pub.PublishSync(ctx, models.SyncReport{Source: "A"}))
	require.NoError(t, pub.PublishConflict(ctx, models.Conflict{StrongKey: "X"}))
	assert.Len(t, pub.Syncs(), 1)
	assert.Len(t, pub.Conflicts(), 1)

	pub.FailWith(errors.New("down"))
	assert.Error(t, pub.PublishSync(ctx, models.SyncReport{Source: "A"}))
	assert.Len(t, pub.Syncs(), 1)
}
