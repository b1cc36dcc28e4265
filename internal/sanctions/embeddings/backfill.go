// Package embeddings fills in missing record embeddings so the vector stage
// of search can reach them.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"pldft/internal/sanctions/metrics"
	"pldft/internal/sanctions/models"
	"pldft/internal/sanctions/ports"
	"pldft/internal/sanctions/store"
)

const defaultEmbedTimeout = 30 * time.Second

var (
	ErrEmbedderRequired = errors.New("embedder is required")
	ErrStoreRequired    = errors.New("store is required")
)

// Store is the slice of the sanction store the backfill touches.
type Store interface {
	ListMissingEmbeddings(ctx context.Context, limit int) ([]models.SanctionRecord, error)
	SetEmbedding(ctx context.Context, id int64, embedding []float32) error
}

// Report counts the outcome of one backfill pass.
type Report struct {
	Examined int `json:"examined"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
}

// Backfiller embeds records concurrently on a bounded worker pool.
type Backfiller struct {
	store        Store
	embedder     ports.Embedder
	pool         *ants.Pool
	workers      int
	dimensions   int
	embedTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

type Option func(*Backfiller)

func WithWorkers(n int) Option {
	return func(b *Backfiller) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithDimensions rejects vectors of any other width. Zero disables the check.
func WithDimensions(n int) Option {
	return func(b *Backfiller) {
		b.dimensions = n
	}
}

func WithEmbedTimeout(d time.Duration) Option {
	return func(b *Backfiller) {
		if d > 0 {
			b.embedTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Backfiller) {
		b.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Backfiller) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func New(st Store, embedder ports.Embedder, opts ...Option) (*Backfiller, error) {
	if st == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	b := &Backfiller{
		store:        st,
		embedder:     embedder,
		workers:      workers,
		dimensions:   store.EmbeddingDimensions,
		embedTimeout: defaultEmbedTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	pool, err := ants.NewPool(b.workers)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	b.pool = pool
	return b, nil
}

// Release stops the worker pool. The backfiller is unusable afterwards.
func (b *Backfiller) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}

// Run embeds up to limit records that have no embedding (all of them when
// limit <= 0). A failing record is counted and logged; it never aborts the
// pass. Run returns an error only when the candidates cannot be listed.
func (b *Backfiller) Run(ctx context.Context, limit int) (*Report, error) {
	records, err := b.store.ListMissingEmbeddings(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list records missing embeddings: %w", err)
	}
	report := &Report{Examined: len(records)}
	if len(records) == 0 {
		return report, nil
	}
	b.logger.Info("embedding backfill started", "records", len(records), "workers", b.workers)
	start := time.Now()

	var embedded, failed atomic.Int64
	var wg sync.WaitGroup
	for _, rec := range records {
		if ctx.Err() != nil {
			failed.Add(1)
			continue
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := b.embedOne(ctx, rec); err != nil {
				failed.Add(1)
				b.metrics.IncrementBackfill("failed")
				b.logger.Warn("embedding failed", "record_id", rec.ID, "source", rec.Source, "error", err)
				return
			}
			embedded.Add(1)
			b.metrics.IncrementBackfill("embedded")
		}
		if err := b.pool.Submit(task); err != nil {
			wg.Done()
			failed.Add(1)
			b.logger.Warn("embedding task rejected", "record_id", rec.ID, "error", err)
		}
	}
	wg.Wait()

	report.Embedded = int(embedded.Load())
	report.Failed = int(failed.Load())
	b.logger.Info("embedding backfill completed",
		"embedded", report.Embedded,
		"failed", report.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func (b *Backfiller) embedOne(ctx context.Context, rec models.SanctionRecord) error {
	input := strings.TrimSpace(rec.EntityName)
	if input == "" {
		return errors.New("record has no name to embed")
	}
	embedCtx, cancel := context.WithTimeout(ctx, b.embedTimeout)
	vec, err := b.embedder.Embed(embedCtx, input)
	cancel()
	if err != nil {
		return err
	}
	if b.dimensions > 0 && len(vec) != b.dimensions {
		return fmt.Errorf("embedding has %d dimensions, want %d", len(vec), b.dimensions)
	}
	return b.store.SetEmbedding(ctx, rec.ID, vec)
}
