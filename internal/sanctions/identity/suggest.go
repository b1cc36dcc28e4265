package identity

import (
	"context"

	"pldft/internal/sanctions/models"
)

const (
	DefaultSuggestThreshold  = 0.5
	DefaultCandidatesPerItem = 5
)

// SuggestConfig bounds the candidate search behind SuggestMatches.
type SuggestConfig struct {
	Threshold         float64
	CandidatesPerItem int
}

func (c SuggestConfig) withDefaults() SuggestConfig {
	if c.Threshold <= 0 {
		c.Threshold = DefaultSuggestThreshold
	}
	if c.CandidatesPerItem <= 0 {
		c.CandidatesPerItem = DefaultCandidatesPerItem
	}
	return c
}

// SuggestMatches looks at up to limit unassigned records, finds fuzzy
// counterparts published by other sources and keeps the pairs the
// classifier confirms. Each unordered pair is proposed once.
func (r *Resolver) SuggestMatches(ctx context.Context, limit int) ([]models.MatchSuggestion, error) {
	records, err := r.store.ListUnassigned(ctx, limit)
	if err != nil {
		return nil, err
	}

	type pair struct{ lo, hi int64 }
	proposed := make(map[pair]struct{})
	out := make([]models.MatchSuggestion, 0)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		candidates, err := r.store.SearchFuzzy(ctx, rec.EntityName, r.cfg.Threshold, r.cfg.CandidatesPerItem)
		if err != nil {
			r.logger.Warn("candidate lookup failed", "record_id", rec.ID, "error", err)
			continue
		}
		for _, cand := range candidates {
			other := cand.Record
			if other.ID == rec.ID || other.Source == rec.Source {
				continue
			}
			if rec.ProfileID != nil && other.ProfileID != nil && *rec.ProfileID == *other.ProfileID {
				continue
			}
			key := pair{lo: min(rec.ID, other.ID), hi: max(rec.ID, other.ID)}
			if _, done := proposed[key]; done {
				continue
			}
			proposed[key] = struct{}{}

			verdict := r.ProposeMatch(ctx, rec, other)
			if verdict != models.VerdictMatch {
				continue
			}
			out = append(out, models.MatchSuggestion{
				Left:       rec,
				Right:      other,
				LeftID:     rec.ID,
				RightID:    other.ID,
				Similarity: cand.Score,
				Verdict:    verdict,
			})
		}
	}
	r.logger.Info("match suggestions computed", "examined", len(records), "suggestions", len(out))
	return out, nil
}
