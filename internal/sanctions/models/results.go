package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncReport summarizes one reconciliation run. Deleted and TotalActive are
// always exact.
type SyncReport struct {
	Source      string `json:"source"`
	Created     int    `json:"created"`
	Updated     int    `json:"updated"`
	Deleted     int    `json:"deleted"`
	TotalActive int    `json:"total_active"`
	// Dropped counts incoming records rejected before persistence (no data_id).
	Dropped int `json:"dropped,omitempty"`
}

// Stage names the search stage that produced a match.
type Stage string

const (
	StageExact   Stage = "exact"
	StageFuzzy   Stage = "fuzzy"
	StageVector  Stage = "vector"
	StageCluster Stage = "cluster"
)

// Match is one search result. Score is the trigram similarity for fuzzy
// matches and the cosine distance for vector matches; it is zero otherwise.
type Match struct {
	Record SanctionRecord
	Stage  Stage
	Score  float64
}

// ScoredRecord is a store-level candidate with its stage score.
type ScoredRecord struct {
	Record SanctionRecord
	Score  float64
}

// Conflict is a strong-key group that bridges two or more existing profiles.
// It is reported for manual review and never merged automatically.
type Conflict struct {
	StrongKey  string      `json:"strong_key"`
	ProfileIDs []uuid.UUID `json:"profile_ids"`
	RecordIDs  []int64     `json:"record_ids"`
	DetectedAt time.Time   `json:"detected_at"`
}

// ClusterReport summarizes one deterministic clustering pass.
type ClusterReport struct {
	Groups          int        `json:"groups"`
	ProfilesCreated int        `json:"profiles_created"`
	Assignments     int        `json:"assignments"`
	Conflicts       []Conflict `json:"conflicts,omitempty"`
}

// MatchVerdict is the three-state interpretation of a classifier answer.
type MatchVerdict string

const (
	VerdictMatch         MatchVerdict = "MATCH"
	VerdictNoMatch       MatchVerdict = "NO_MATCH"
	VerdictIndeterminate MatchVerdict = "INDETERMINATE"
)

// MatchSuggestion pairs two records the classifier considered the same
// identity. Suggestions are advisory; nothing assigns profiles from them.
type MatchSuggestion struct {
	Left       SanctionRecord `json:"-"`
	Right      SanctionRecord `json:"-"`
	LeftID     int64          `json:"left_id"`
	RightID    int64          `json:"right_id"`
	Similarity float64        `json:"similarity"`
	Verdict    MatchVerdict   `json:"verdict"`
}
