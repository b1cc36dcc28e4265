// Package reconcile applies a complete feed snapshot to the store.
//
// Every sync is a full replace of one source scope: rows present in the feed
// are inserted or overwritten, rows of that scope missing from the feed are
// deleted, and all of it commits in one transaction. Other scopes are never
// touched.
package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pldft/internal/sanctions/feeds"
	"pldft/internal/sanctions/metrics"
	"pldft/internal/sanctions/models"
	"pldft/internal/sanctions/ports"
	"pldft/internal/sanctions/store"
	dErrors "pldft/pkg/domain-errors"
)

const syncLockPrefix = "sync:"

// DefaultPublishTimeout bounds post-commit event delivery.
const DefaultPublishTimeout = 5 * time.Second

// Store is the transactional boundary the service needs.
type Store interface {
	RunInTx(ctx context.Context, lockKey string, fn func(tx store.Tx) error) error
}

// Service reconciles feeds into the store.
type Service struct {
	store          Store
	leases         Leaser
	registry       *feeds.Registry
	publisher      ports.Publisher
	publishTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
	tracer         trace.Tracer
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

// WithLeases replaces the default in-process leases, e.g. with RedisLeases
// when several workers may sync the same scope.
func WithLeases(l Leaser) Option {
	return func(s *Service) {
		if l != nil {
			s.leases = l
		}
	}
}

// WithRegistry enables SyncPayload.
func WithRegistry(r *feeds.Registry) Option {
	return func(s *Service) {
		s.registry = r
	}
}

func WithPublisher(p ports.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func New(st Store, opts ...Option) *Service {
	s := &Service{
		store:          st,
		leases:         NewLocalLeases(),
		publishTimeout: DefaultPublishTimeout,
		logger:         slog.Default(),
		tracer:         otel.Tracer("pldft/reconcile"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncPayload decodes raw with the adapter registered for scope and
// reconciles the result. A ParseError aborts the run before the store is
// touched.
func (s *Service) SyncPayload(ctx context.Context, scope string, raw []byte) (*models.SyncReport, error) {
	if s.registry == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "no feed registry configured")
	}
	adapter, err := s.registry.Lookup(scope)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown source scope")
	}
	payload, err := feeds.DecodePayload(raw)
	if err != nil {
		s.metrics.IncrementSyncRun(scope, "parse_error")
		return nil, dErrors.Wrap(err, dErrors.CodeParse, "decode payload")
	}
	batch, err := adapter.Parse(payload)
	if err != nil {
		s.metrics.IncrementSyncRun(scope, "parse_error")
		s.logger.Error("feed parse failed", "source", scope, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeParse, "parse feed")
	}
	return s.sync(ctx, scope, batch.Records, batch.Skipped)
}

// Sync replaces the contents of scope with records. An empty slice is a
// legitimate snapshot and deletes every row of the scope.
func (s *Service) Sync(ctx context.Context, scope string, records []models.CanonicalRecord) (*models.SyncReport, error) {
	return s.sync(ctx, scope, records, 0)
}

func (s *Service) sync(ctx context.Context, scope string, records []models.CanonicalRecord, skipped int) (*models.SyncReport, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "source scope is required")
	}

	ctx, span := s.tracer.Start(ctx, "reconcile.Sync", trace.WithAttributes(
		attribute.String("source", scope),
		attribute.Int("incoming", len(records)),
	))
	defer span.End()
	start := time.Now()

	incoming, dropped, err := prepare(scope, records)
	if err != nil {
		s.fail(span, scope, err)
		return nil, err
	}
	report := &models.SyncReport{Source: scope, Dropped: dropped + skipped}
	if report.Dropped > 0 {
		s.logger.Warn("records dropped before persistence", "source", scope, "dropped", report.Dropped)
	}

	err = RunLocked(ctx, s.leases, s.store, syncLockPrefix+scope, func(tx store.Tx) error {
		return apply(ctx, tx, scope, incoming, report)
	})
	if err != nil {
		s.fail(span, scope, err)
		return nil, dErrors.Wrap(err, dErrors.GetCode(err), "sync "+scope)
	}

	s.metrics.IncrementSyncRun(scope, "ok")
	s.metrics.ObserveSync(scope, report.Created, report.Updated, report.Deleted, report.Dropped, report.TotalActive, time.Since(start))
	span.SetAttributes(
		attribute.Int("created", report.Created),
		attribute.Int("updated", report.Updated),
		attribute.Int("deleted", report.Deleted),
		attribute.Int("total_active", report.TotalActive),
	)
	s.logger.Info("sync completed",
		"source", scope,
		"created", report.Created,
		"updated", report.Updated,
		"deleted", report.Deleted,
		"total_active", report.TotalActive,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.publish(ctx, *report)
	return report, nil
}

// prepare validates scope membership, drops records without a data id and
// collapses in-batch duplicates: the last occurrence wins, the first
// occurrence fixes the position.
func prepare(scope string, records []models.CanonicalRecord) ([]models.CanonicalRecord, int, error) {
	out := make([]models.CanonicalRecord, 0, len(records))
	index := make(map[string]int, len(records))
	dropped := 0
	for _, rec := range records {
		if rec.Source == "" {
			rec.Source = scope
		}
		if rec.Source != scope {
			return nil, 0, dErrors.New(dErrors.CodeValidation, "record of source "+rec.Source+" in "+scope+" feed")
		}
		rec.DataID = strings.TrimSpace(rec.DataID)
		if rec.DataID == "" {
			dropped++
			continue
		}
		if i, seen := index[rec.DataID]; seen {
			out[i] = rec
			continue
		}
		index[rec.DataID] = len(out)
		out = append(out, rec)
	}
	return out, dropped, nil
}

func apply(ctx context.Context, tx store.Tx, scope string, incoming []models.CanonicalRecord, report *models.SyncReport) error {
	existing, err := tx.ListDataIDs(ctx, scope)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(incoming))
	for _, rec := range incoming {
		created, err := tx.Upsert(ctx, rec)
		if err != nil {
			return err
		}
		if created {
			report.Created++
		} else {
			report.Updated++
		}
		seen[rec.DataID] = struct{}{}
	}

	stale := make([]string, 0)
	for _, id := range existing {
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	if report.Deleted, err = tx.DeleteByDataIDs(ctx, scope, stale); err != nil {
		return err
	}

	report.TotalActive, err = tx.CountBySource(ctx, scope)
	return err
}

// RunLocked runs fn in a store transaction while holding the lease on
// lockKey. The lease is released as soon as the transaction ends.
func RunLocked(ctx context.Context, leases Leaser, st Store, lockKey string, fn func(tx store.Tx) error) error {
	release, err := leases.Acquire(ctx, lockKey)
	if err != nil {
		return err
	}
	defer release()
	return st.RunInTx(ctx, lockKey, fn)
}

func (s *Service) fail(span trace.Span, scope string, err error) {
	s.metrics.IncrementSyncRun(scope, "error")
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Error("sync failed", "source", scope, "error", err)
}

func (s *Service) publish(ctx context.Context, report models.SyncReport) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.publisher.PublishSync(ctx, report); err != nil {
		s.logger.Warn("failed to publish sync report", "source", report.Source, "error", err)
	}
}
