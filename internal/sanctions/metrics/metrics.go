package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for sync, search, clustering and backfill.
type Metrics struct {
	// Sync runs by source and outcome (ok, parse_error, error)
	SyncRuns *prometheus.CounterVec

	// Records written per sync by source and kind (created, updated, deleted, dropped)
	SyncRecords *prometheus.CounterVec

	SyncDuration *prometheus.HistogramVec

	// Rows currently held per source after the last successful sync
	ActiveRecords *prometheus.GaugeVec

	// Search stage outcomes by stage and outcome (run, skipped, failed)
	SearchStages *prometheus.CounterVec

	// Distinct records contributed per stage
	SearchHits *prometheus.CounterVec

	SearchDuration prometheus.Histogram

	ClusterProfilesCreated prometheus.Counter
	ClusterAssignments     prometheus.Counter
	ClusterConflicts       prometheus.Counter

	// Backfill results by outcome (embedded, failed)
	BackfillRecords *prometheus.CounterVec
}

// New registers the metrics with reg. Passing nil uses the default
// registerer; tests pass prometheus.NewRegistry() to avoid collisions.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		SyncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pldft_sync_runs_total",
			Help: "Total sync runs by source and outcome",
		}, []string{"source", "outcome"}),

		SyncRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pldft_sync_records_total",
			Help: "Records written by sync runs by source and kind",
		}, []string{"source", "kind"}),

		SyncDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pldft_sync_duration_seconds",
			Help:    "Duration of a full sync including the store transaction",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),

		ActiveRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pldft_active_records",
			Help: "Records held per source after the last successful sync",
		}, []string{"source"}),

		SearchStages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pldft_search_stage_total",
			Help: "Search stage executions by stage and outcome",
		}, []string{"stage", "outcome"}),

		SearchHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pldft_search_hits_total",
			Help: "Distinct records contributed by each search stage",
		}, []string{"stage"}),

		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pldft_search_duration_seconds",
			Help:    "Duration of a full cascading search including expansion",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		ClusterProfilesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "pldft_cluster_profiles_created_total",
			Help: "Identity profiles minted by deterministic clustering",
		}),
		ClusterAssignments: f.NewCounter(prometheus.CounterOpts{
			Name: "pldft_cluster_assignments_total",
			Help: "Records linked to a profile by deterministic clustering",
		}),
		ClusterConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "pldft_cluster_conflicts_total",
			Help: "Strong-key groups that bridge more than one profile",
		}),

		BackfillRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pldft_backfill_records_total",
			Help: "Embedding backfill results by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementSyncRun(source, outcome string) {
	if m != nil {
		m.SyncRuns.WithLabelValues(source, outcome).Inc()
	}
}

// ObserveSync records the counters and gauge of a successful sync.
func (m *Metrics) ObserveSync(source string, created, updated, deleted, dropped, active int, d time.Duration) {
	if m == nil {
		return
	}
	m.SyncRecords.WithLabelValues(source, "created").Add(float64(created))
	m.SyncRecords.WithLabelValues(source, "updated").Add(float64(updated))
	m.SyncRecords.WithLabelValues(source, "deleted").Add(float64(deleted))
	m.SyncRecords.WithLabelValues(source, "dropped").Add(float64(dropped))
	m.ActiveRecords.WithLabelValues(source).Set(float64(active))
	m.SyncDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) IncrementSearchStage(stage, outcome string) {
	if m != nil {
		m.SearchStages.WithLabelValues(stage, outcome).Inc()
	}
}

func (m *Metrics) AddSearchHits(stage string, n int) {
	if m != nil && n > 0 {
		m.SearchHits.WithLabelValues(stage).Add(float64(n))
	}
}

func (m *Metrics) ObserveSearchLatency(d time.Duration) {
	if m != nil {
		m.SearchDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveCluster(profilesCreated, assignments, conflicts int) {
	if m == nil {
		return
	}
	m.ClusterProfilesCreated.Add(float64(profilesCreated))
	m.ClusterAssignments.Add(float64(assignments))
	m.ClusterConflicts.Add(float64(conflicts))
}

func (m *Metrics) IncrementBackfill(outcome string) {
	if m != nil {
		m.BackfillRecords.WithLabelValues(outcome).Inc()
	}
}
