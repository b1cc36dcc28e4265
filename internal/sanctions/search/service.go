// Package search answers screening queries with a cascade of exact, fuzzy
// and vector stages, then expands the hits across resolved identities.
package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pldft/internal/sanctions/metrics"
	"pldft/internal/sanctions/models"
	"pldft/internal/sanctions/ports"
	dErrors "pldft/pkg/domain-errors"
)

const (
	DefaultLimit          = 10
	DefaultMaxLimit       = 50
	DefaultFuzzyThreshold = 0.3
	DefaultEmbedTimeout   = 5 * time.Second
	minQueryLength        = 2
)

// Store is the read surface the cascade queries.
type Store interface {
	ProfileStore
	SearchExact(ctx context.Context, query string, limit int) ([]models.SanctionRecord, error)
	SearchFuzzy(ctx context.Context, query string, threshold float64, limit int) ([]models.ScoredRecord, error)
	SearchVector(ctx context.Context, embedding []float32, limit int) ([]models.ScoredRecord, error)
}

// Config tunes the cascade.
type Config struct {
	DefaultLimit   int
	MaxLimit       int
	FuzzyThreshold float64
	EmbedTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = DefaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = DefaultMaxLimit
	}
	if c.DefaultLimit > c.MaxLimit {
		c.DefaultLimit = c.MaxLimit
	}
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = DefaultEmbedTimeout
	}
	return c
}

// Service runs the cascading search.
type Service struct {
	store    Store
	embedder ports.Embedder
	expander *Expander
	cfg      Config
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEmbedder enables the vector stage.
func WithEmbedder(e ports.Embedder) Option {
	return func(s *Service) {
		s.embedder = e
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg.withDefaults()
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("search store is required")
	}
	s := &Service{
		store:    store,
		expander: NewExpander(store),
		cfg:      Config{}.withDefaults(),
		logger:   slog.Default(),
		tracer:   otel.Tracer("pldft/search"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// cascade accumulates distinct matches up to limit.
type cascade struct {
	limit   int
	seen    map[int64]struct{}
	matches []models.Match
}

func (c *cascade) full() bool {
	return len(c.matches) >= c.limit
}

func (c *cascade) add(rec models.SanctionRecord, stage models.Stage, score float64) bool {
	if c.full() {
		return false
	}
	if _, ok := c.seen[rec.ID]; ok {
		return false
	}
	c.seen[rec.ID] = struct{}{}
	c.matches = append(c.matches, models.Match{Record: rec, Stage: stage, Score: score})
	return true
}

// Search runs exact, fuzzy and vector stages in order, stopping as soon as
// limit distinct records are collected, and then appends every profile
// sibling of those records. The result may therefore exceed limit. A failing
// stage is logged and skipped; the search fails only when every stage that
// ran failed.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.Match, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minQueryLength {
		return nil, dErrors.New(dErrors.CodeValidation, "query must be at least 2 characters")
	}
	limit = s.normalizeLimit(limit)

	ctx, span := s.tracer.Start(ctx, "search.Search", trace.WithAttributes(
		attribute.Int("query_len", len(query)),
		attribute.Int("limit", limit),
	))
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveSearchLatency(time.Since(start)) }()

	c := &cascade{limit: limit, seen: make(map[int64]struct{}, limit)}
	var outcome stageOutcome

	outcome.record(s.exactStage(ctx, c, query))
	if !c.full() {
		outcome.record(s.fuzzyStage(ctx, c, query))
	} else {
		s.metrics.IncrementSearchStage(string(models.StageFuzzy), "skipped")
	}
	if !c.full() {
		outcome.record(s.vectorStage(ctx, c, query))
	} else {
		s.metrics.IncrementSearchStage(string(models.StageVector), "skipped")
	}

	if err := outcome.err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "every search stage failed")
	}

	results, err := s.expander.Expand(ctx, c.matches)
	if err != nil {
		s.logger.Warn("cluster expansion failed, returning direct matches", "stage", models.StageCluster, "error", err)
		s.metrics.IncrementSearchStage(string(models.StageCluster), "failed")
		results = c.matches
	} else {
		s.metrics.AddSearchHits(string(models.StageCluster), len(results)-len(c.matches))
	}

	span.SetAttributes(attribute.Int("direct", len(c.matches)), attribute.Int("results", len(results)))
	s.logger.Debug("search completed",
		"query_len", len(query),
		"limit", limit,
		"direct", len(c.matches),
		"results", len(results),
	)
	return results, nil
}

// errStageSkipped marks a stage that did not run.
var errStageSkipped = errors.New("stage skipped")

// stageOutcome tracks which stages ran and which of them failed.
type stageOutcome struct {
	ran    int
	failed []error
}

func (o *stageOutcome) record(err error) {
	if errors.Is(err, errStageSkipped) {
		return
	}
	o.ran++
	if err != nil {
		o.failed = append(o.failed, err)
	}
}

func (o *stageOutcome) err() error {
	if o.ran == 0 || len(o.failed) < o.ran {
		return nil
	}
	return errors.Join(o.failed...)
}

func (s *Service) normalizeLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}

func (s *Service) exactStage(ctx context.Context, c *cascade, query string) error {
	ctx, span := s.tracer.Start(ctx, "search.exact")
	defer span.End()

	recs, err := s.store.SearchExact(ctx, query, c.limit)
	if err != nil {
		span.RecordError(err)
		s.metrics.IncrementSearchStage(string(models.StageExact), "failed")
		s.logger.Warn("exact stage unavailable, skipping", "stage", models.StageExact, "error", err)
		return err
	}
	s.metrics.IncrementSearchStage(string(models.StageExact), "run")
	added := 0
	for _, rec := range recs {
		if c.add(rec, models.StageExact, 0) {
			added++
		}
	}
	s.metrics.AddSearchHits(string(models.StageExact), added)
	return nil
}

func (s *Service) fuzzyStage(ctx context.Context, c *cascade, query string) error {
	ctx, span := s.tracer.Start(ctx, "search.fuzzy")
	defer span.End()

	scored, err := s.store.SearchFuzzy(ctx, query, s.cfg.FuzzyThreshold, c.limit)
	if err != nil {
		span.RecordError(err)
		s.metrics.IncrementSearchStage(string(models.StageFuzzy), "failed")
		s.logger.Warn("fuzzy stage unavailable, skipping", "stage", models.StageFuzzy, "error", err)
		return err
	}
	s.metrics.IncrementSearchStage(string(models.StageFuzzy), "run")
	s.metrics.AddSearchHits(string(models.StageFuzzy), c.merge(scored, models.StageFuzzy))
	return nil
}

func (s *Service) vectorStage(ctx context.Context, c *cascade, query string) error {
	if s.embedder == nil {
		s.metrics.IncrementSearchStage(string(models.StageVector), "skipped")
		return errStageSkipped
	}
	ctx, span := s.tracer.Start(ctx, "search.vector")
	defer span.End()

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	vec, err := s.embedder.Embed(embedCtx, query)
	cancel()
	if err != nil {
		span.RecordError(err)
		s.metrics.IncrementSearchStage(string(models.StageVector), "failed")
		s.logger.Warn("embedding unavailable, skipping vector stage", "stage", models.StageVector, "error", err)
		return err
	}

	scored, err := s.store.SearchVector(ctx, vec, c.limit)
	if err != nil {
		span.RecordError(err)
		s.metrics.IncrementSearchStage(string(models.StageVector), "failed")
		s.logger.Warn("vector stage unavailable, skipping", "stage", models.StageVector, "error", err)
		return err
	}
	s.metrics.IncrementSearchStage(string(models.StageVector), "run")
	s.metrics.AddSearchHits(string(models.StageVector), c.merge(scored, models.StageVector))
	return nil
}

func (c *cascade) merge(scored []models.ScoredRecord, stage models.Stage) int {
	added := 0
	for _, sr := range scored {
		if c.add(sr.Record, stage, sr.Score) {
			added++
		}
	}
	return added
}
