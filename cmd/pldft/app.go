package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pldft/internal/ai"
	"pldft/internal/ai/openai"
	"pldft/internal/platform/config"
	"pldft/internal/platform/httpserver"
	"pldft/internal/platform/kafka"
	platformmetrics "pldft/internal/platform/metrics"
	"pldft/internal/platform/postgres"
	"pldft/internal/platform/redis"
	"pldft/internal/sanctions/embeddings"
	"pldft/internal/sanctions/events"
	"pldft/internal/sanctions/feeds"
	"pldft/internal/sanctions/feeds/mex"
	"pldft/internal/sanctions/feeds/sat"
	"pldft/internal/sanctions/feeds/un"
	"pldft/internal/sanctions/identity"
	"pldft/internal/sanctions/metrics"
	"pldft/internal/sanctions/ports"
	"pldft/internal/sanctions/reconcile"
	"pldft/internal/sanctions/search"
	"pldft/internal/sanctions/store"
	"pldft/internal/sanctions/summary"
	"pldft/pkg/platform/circuit"
)

const (
	embedderCooldown  = 30 * time.Second
	topicSetupTimeout = 10 * time.Second
)

// sanctionStore is the surface shared by the in-memory and PostgreSQL stores.
type sanctionStore interface {
	store.Reader
	RunInTx(ctx context.Context, lockKey string, fn func(tx store.Tx) error) error
	SetEmbedding(ctx context.Context, id int64, embedding []float32) error
}

// app holds the wired services of one CLI invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	store    sanctionStore
	feeds    *feeds.Registry
	sync     *reconcile.Service
	search   *search.Service
	resolver *identity.Resolver
	summary  *summary.Service
	embedder ports.Embedder

	checks  map[string]httpserver.Check
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: platformmetrics.NewRegistry(),
		checks:   make(map[string]httpserver.Check),
	}
	a.metrics = metrics.New(a.registry)

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	leases, err := a.openLeases(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher, err := a.openPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	classifier, summarizer, err := a.openAI()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.feeds = feeds.NewRegistry(
		un.New(un.WithLogger(logger)),
		mex.New(mex.WithLogger(logger)),
		sat.New(sat.WithLogger(logger)),
	)
	a.sync = reconcile.New(a.store,
		reconcile.WithLogger(logger),
		reconcile.WithMetrics(a.metrics),
		reconcile.WithLeases(leases),
		reconcile.WithRegistry(a.feeds),
		reconcile.WithPublisher(publisher),
	)
	a.search, err = search.New(a.store,
		search.WithLogger(logger),
		search.WithMetrics(a.metrics),
		search.WithEmbedder(a.embedder),
		search.WithConfig(search.Config{
			DefaultLimit:   cfg.Search.DefaultLimit,
			MaxLimit:       cfg.Search.MaxLimit,
			FuzzyThreshold: cfg.Search.FuzzyThreshold,
			EmbedTimeout:   cfg.AI.EmbeddingTimeout,
		}),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.resolver = identity.New(a.store,
		identity.WithLogger(logger),
		identity.WithMetrics(a.metrics),
		identity.WithLeases(leases),
		identity.WithClassifier(classifier),
		identity.WithPublisher(publisher),
	)
	a.summary = summary.New(summarizer, summary.WithLogger(logger))
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	db, err := postgres.Open(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	if db == nil {
		a.logger.Warn("database.url not set, using the in-memory store; state is lost on exit")
		a.store = store.NewInMemoryStore()
		return nil
	}
	a.closers = append(a.closers, func() { _ = db.Close() })
	if err := store.Migrate(ctx, db, a.logger); err != nil {
		return err
	}
	pg := store.NewPostgres(db, store.WithTxTimeout(a.cfg.Database.TxTimeout))
	a.store = pg
	a.checks["postgres"] = pg.Ping
	return nil
}

func (a *app) openLeases(ctx context.Context) (reconcile.Leaser, error) {
	if a.cfg.Lease.Backend != config.LeaseBackendRedis {
		return reconcile.NewLocalLeases(), nil
	}
	client, err := redis.New(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.checks["redis"] = client.Health
	return reconcile.NewRedisLeases(client.Client,
		reconcile.WithLeaseTTL(a.cfg.Lease.TTL),
		reconcile.WithLeaseLogger(a.logger),
	), nil
}

func (a *app) openPublisher(ctx context.Context) (ports.Publisher, error) {
	producer, err := kafka.NewProducer(kafka.Config{Brokers: a.cfg.Kafka.Brokers, ClientID: a.cfg.Kafka.ClientID})
	if err != nil {
		return nil, err
	}
	if producer == nil {
		return nil, nil
	}
	a.closers = append(a.closers, producer.Close)
	a.checks["kafka"] = producer.Health
	topicCtx, cancel := context.WithTimeout(ctx, topicSetupTimeout)
	defer cancel()
	if err := producer.EnsureTopics(topicCtx, 1, 1, a.cfg.Kafka.SyncTopic, a.cfg.Kafka.AnomalyTopic); err != nil {
		a.logger.Warn("could not ensure kafka topics", "error", err)
	}
	return events.NewKafkaPublisher(producer, events.WithTopics(a.cfg.Kafka.SyncTopic, a.cfg.Kafka.AnomalyTopic)), nil
}

// openAI sets the embedder and returns the classifier and summarizer. All
// three stay nil when no provider is configured.
func (a *app) openAI() (ports.Classifier, ports.Summarizer, error) {
	if !a.cfg.AI.Enabled() {
		a.logger.Info("no AI provider configured; vector search, classification and summaries are disabled")
		return nil, nil, nil
	}
	opts := []ai.ConfigOption{
		ai.WithAPIKey(a.cfg.AI.APIKey),
		ai.WithEmbeddingModel(a.cfg.AI.EmbeddingModel),
		ai.WithClassifierModel(a.cfg.AI.ClassifierModel),
	}
	if a.cfg.AI.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(a.cfg.AI.EmbeddingHost))
	}
	if a.cfg.AI.ClassifierHost != "" {
		opts = append(opts, ai.WithClassifierHost(a.cfg.AI.ClassifierHost))
	}
	aiCfg := ai.NewConfig(opts...)

	embedder, err := openai.NewEmbedder(aiCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder: %w", err)
	}
	classifier, err := openai.NewClassifier(aiCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("classifier: %w", err)
	}
	summarizer, err := openai.NewSummarizer(aiCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("summarizer: %w", err)
	}
	a.embedder = ai.NewGuardedEmbedder(embedder,
		circuit.New("embedder", circuit.WithFailureThreshold(3), circuit.WithCooldown(embedderCooldown)),
		a.logger,
	)
	return classifier, summarizer, nil
}

func (a *app) newBackfiller() (*embeddings.Backfiller, error) {
	if a.embedder == nil {
		return nil, errors.New("backfill needs an AI provider (set ai.api_key or ai.embedding_host)")
	}
	return embeddings.New(a.store, a.embedder,
		embeddings.WithWorkers(a.cfg.Backfill.Workers),
		embeddings.WithEmbedTimeout(a.cfg.AI.EmbeddingTimeout),
		embeddings.WithMetrics(a.metrics),
		embeddings.WithLogger(a.logger),
	)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

var (
	_ sanctionStore = (*store.PostgresStore)(nil)
	_ sanctionStore = (*store.InMemoryStore)(nil)
)
