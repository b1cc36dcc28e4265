package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pldft/internal/sanctions/models"
)

const (
	DefaultSyncTopic    = "pldft.sanctions.sync"
	DefaultAnomalyTopic = "pldft.sanctions.anomalies"
)

// Producer is the transport the Kafka publisher writes through.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// KafkaPublisher publishes JSON envelopes keyed by source scope (sync
// reports) or strong key (conflicts), so events about the same subject stay
// ordered within a partition.
type KafkaPublisher struct {
	producer     Producer
	syncTopic    string
	anomalyTopic string
	now          func() time.Time
}

type KafkaOption func(*KafkaPublisher)

func WithTopics(syncTopic, anomalyTopic string) KafkaOption {
	return func(p *KafkaPublisher) {
		if syncTopic != "" {
			p.syncTopic = syncTopic
		}
		if anomalyTopic != "" {
			p.anomalyTopic = anomalyTopic
		}
	}
}

func WithClock(now func() time.Time) KafkaOption {
	return func(p *KafkaPublisher) {
		if now != nil {
			p.now = now
		}
	}
}

func NewKafkaPublisher(producer Producer, opts ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{
		producer:     producer,
		syncTopic:    DefaultSyncTopic,
		anomalyTopic: DefaultAnomalyTopic,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *KafkaPublisher) PublishSync(ctx context.Context, report models.SyncReport) error {
	return p.publish(ctx, p.syncTopic, TypeSyncCompleted, report.Source, report)
}

func (p *KafkaPublisher) PublishConflict(ctx context.Context, conflict models.Conflict) error {
	return p.publish(ctx, p.anomalyTopic, TypeIdentityConflict, conflict.StrongKey, conflict)
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, eventType, key string, payload any) error {
	env, err := newEnvelope(eventType, key, payload, p.now())
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", eventType, err)
	}
	return p.producer.Produce(ctx, topic, []byte(key), value)
}
