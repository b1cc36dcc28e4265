//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"pldft/internal/platform/kafka"
	"pldft/internal/sanctions/events"
	"pldft/internal/sanctions/models"
	"pldft/pkg/testutil/containers"
)

type KafkaPublisherSuite struct {
	suite.Suite
	brokers  []string
	producer *kafka.Producer
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers
	producer, err := kafka.NewProducer(kafka.Config{Brokers: s.brokers, ClientID: "pldft-test"})
	s.Require().NoError(err)
	s.producer = producer
}

func (s *KafkaPublisherSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *KafkaPublisherSuite) TestPublishSyncRoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "sync-roundtrip"
	s.Require().NoError(s.producer.EnsureTopics(ctx, 1, 1, topic))
	// A second call must tolerate existing topics.
	s.Require().NoError(s.producer.EnsureTopics(ctx, 1, 1, topic))

	pub := events.NewKafkaPublisher(s.producer, events.WithTopics(topic, "unused"))
	report := models.SyncReport{Source: models.SourceUNConsolidated, Created: 1, TotalActive: 1}
	s.Require().NoError(pub.PublishSync(ctx, report))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal(models.SourceUNConsolidated, string(records[0].Key))

	var env events.Envelope
	s.Require().NoError(json.Unmarshal(records[0].Value, &env))
	s.Equal(events.TypeSyncCompleted, env.Type)
}
