// Package identity groups sanction records that describe the same real-world
// person or organization into identity profiles.
//
// Clustering is deterministic: records sharing a strong key (for example an
// RFC tax id) end up in one profile. A strong-key group that would bridge two
// existing profiles is reported as a conflict and left untouched. The
// classifier-backed ProposeMatch only advises and never assigns profiles.
package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pldft/internal/sanctions/metrics"
	"pldft/internal/sanctions/models"
	"pldft/internal/sanctions/ports"
	"pldft/internal/sanctions/reconcile"
	"pldft/internal/sanctions/store"
	dErrors "pldft/pkg/domain-errors"
)

const clusterLockKey = "cluster"

// Store is what the resolver needs from the sanction store.
type Store interface {
	RunInTx(ctx context.Context, lockKey string, fn func(tx store.Tx) error) error
	ListUnassigned(ctx context.Context, limit int) ([]models.SanctionRecord, error)
	SearchFuzzy(ctx context.Context, query string, threshold float64, limit int) ([]models.ScoredRecord, error)
}

// Resolver runs deterministic clustering and classifier-backed proposals.
type Resolver struct {
	store          Store
	leases         reconcile.Leaser
	classifier     ports.Classifier
	publisher      ports.Publisher
	publishTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
	tracer         trace.Tracer
	newID          func() uuid.UUID
	now            func() time.Time
	cfg            SuggestConfig
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithLeases shares the lease backend with the sync service so a cluster
// pass is single-writer across processes.
func WithLeases(l reconcile.Leaser) Option {
	return func(r *Resolver) {
		if l != nil {
			r.leases = l
		}
	}
}

func WithClassifier(c ports.Classifier) Option {
	return func(r *Resolver) {
		r.classifier = c
	}
}

func WithPublisher(p ports.Publisher) Option {
	return func(r *Resolver) {
		r.publisher = p
	}
}

func WithPublishTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.publishTimeout = d
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Resolver) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithIDGenerator overrides profile id generation.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(r *Resolver) {
		if gen != nil {
			r.newID = gen
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func WithSuggestConfig(cfg SuggestConfig) Option {
	return func(r *Resolver) {
		r.cfg = cfg.withDefaults()
	}
}

func New(st Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:          st,
		leases:         reconcile.NewLocalLeases(),
		publishTimeout: reconcile.DefaultPublishTimeout,
		logger:         slog.Default(),
		tracer:         otel.Tracer("pldft/identity"),
		newID:          uuid.New,
		now:            time.Now,
		cfg:            SuggestConfig{}.withDefaults(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ClusterDeterministic assigns every record sharing a strong key to one
// profile. Running it again on unchanged data changes nothing. The whole
// pass commits or rolls back as a unit; conflicts are published only after a
// successful commit.
func (r *Resolver) ClusterDeterministic(ctx context.Context) (*models.ClusterReport, error) {
	ctx, span := r.tracer.Start(ctx, "identity.ClusterDeterministic")
	defer span.End()

	var report *models.ClusterReport
	err := reconcile.RunLocked(ctx, r.leases, r.store, clusterLockKey, func(tx store.Tx) error {
		var err error
		report, err = r.cluster(ctx, tx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("clustering failed", "error", err)
		return nil, dErrors.Wrap(err, dErrors.GetCode(err), "cluster identities")
	}

	r.metrics.ObserveCluster(report.ProfilesCreated, report.Assignments, len(report.Conflicts))
	span.SetAttributes(
		attribute.Int("groups", report.Groups),
		attribute.Int("profiles_created", report.ProfilesCreated),
		attribute.Int("assignments", report.Assignments),
		attribute.Int("conflicts", len(report.Conflicts)),
	)
	for _, c := range report.Conflicts {
		r.logger.Warn("strong key bridges distinct profiles",
			"log_type", "anomaly",
			"strong_key", c.StrongKey,
			"profile_ids", c.ProfileIDs,
			"record_ids", c.RecordIDs,
		)
		r.publishConflict(ctx, c)
	}
	r.logger.Info("clustering completed",
		"groups", report.Groups,
		"profiles_created", report.ProfilesCreated,
		"assignments", report.Assignments,
		"conflicts", len(report.Conflicts),
	)
	return report, nil
}

func (r *Resolver) publishConflict(ctx context.Context, c models.Conflict) {
	if r.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()
	if err := r.publisher.PublishConflict(ctx, c); err != nil {
		r.logger.Warn("failed to publish identity conflict", "strong_key", c.StrongKey, "error", err)
	}
}

func (r *Resolver) cluster(ctx context.Context, tx store.Tx) (*models.ClusterReport, error) {
	keys, err := tx.SharedStrongKeys(ctx)
	if err != nil {
		return nil, err
	}
	report := &models.ClusterReport{Groups: len(keys)}

	for _, key := range keys {
		members, err := tx.ListByStrongKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(members) < 2 {
			continue
		}

		profiles, unassigned := partition(members)
		switch len(profiles) {
		case 0:
			profile := models.IdentityProfile{ID: r.newID(), PrimaryName: members[0].EntityName}
			if err := tx.CreateProfile(ctx, profile); err != nil {
				return nil, err
			}
			n, err := tx.AssignProfile(ctx, profile.ID, unassigned)
			if err != nil {
				return nil, err
			}
			report.ProfilesCreated++
			report.Assignments += n
			r.logger.Debug("profile created", "profile_id", profile.ID, "strong_key", key, "members", n)
		case 1:
			if len(unassigned) == 0 {
				continue
			}
			n, err := tx.AssignProfile(ctx, profiles[0], unassigned)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				if err := tx.TouchProfile(ctx, profiles[0]); err != nil {
					return nil, err
				}
			}
			report.Assignments += n
		default:
			ids := make([]int64, len(members))
			for i, m := range members {
				ids[i] = m.ID
			}
			report.Conflicts = append(report.Conflicts, models.Conflict{
				StrongKey:  key,
				ProfileIDs: profiles,
				RecordIDs:  ids,
				DetectedAt: r.now().UTC(),
			})
		}
	}
	return report, nil
}

// partition returns the distinct profiles of members in order of first
// appearance and the ids of members without a profile.
func partition(members []models.SanctionRecord) ([]uuid.UUID, []int64) {
	profiles := make([]uuid.UUID, 0, 1)
	seen := make(map[uuid.UUID]struct{})
	unassigned := make([]int64, 0, len(members))
	for _, m := range members {
		if m.ProfileID == nil {
			unassigned = append(unassigned, m.ID)
			continue
		}
		if _, ok := seen[*m.ProfileID]; !ok {
			seen[*m.ProfileID] = struct{}{}
			profiles = append(profiles, *m.ProfileID)
		}
	}
	return profiles, unassigned
}
