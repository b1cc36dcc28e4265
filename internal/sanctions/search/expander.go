package search

import (
	"context"

	"github.com/google/uuid"

	"pldft/internal/sanctions/models"
)

// ProfileStore lists the members of identity profiles.
type ProfileStore interface {
	ListByProfiles(ctx context.Context, profileIDs []uuid.UUID) ([]models.SanctionRecord, error)
}

// Expander pulls in every record that shares a resolved identity with the
// initial matches.
type Expander struct {
	store ProfileStore
}

func NewExpander(store ProfileStore) *Expander {
	return &Expander{store: store}
}

// Expand returns matches followed by their unseen profile siblings. Siblings
// are grouped by profile in order of first appearance, then by record id.
func (e *Expander) Expand(ctx context.Context, matches []models.Match) ([]models.Match, error) {
	seen := make(map[int64]struct{}, len(matches))
	order := make([]uuid.UUID, 0)
	profiles := make(map[uuid.UUID]struct{})
	for _, m := range matches {
		seen[m.Record.ID] = struct{}{}
		pid := m.Record.ProfileID
		if pid == nil {
			continue
		}
		if _, ok := profiles[*pid]; !ok {
			profiles[*pid] = struct{}{}
			order = append(order, *pid)
		}
	}
	if len(order) == 0 {
		return matches, nil
	}

	members, err := e.store.ListByProfiles(ctx, order)
	if err != nil {
		return nil, err
	}
	byProfile := make(map[uuid.UUID][]models.SanctionRecord, len(order))
	for _, rec := range members {
		if rec.ProfileID != nil {
			byProfile[*rec.ProfileID] = append(byProfile[*rec.ProfileID], rec)
		}
	}

	out := append(make([]models.Match, 0, len(matches)+len(members)), matches...)
	for _, pid := range order {
		for _, rec := range byProfile[pid] {
			if _, ok := seen[rec.ID]; ok {
				continue
			}
			seen[rec.ID] = struct{}{}
			out = append(out, models.Match{Record: rec, Stage: models.StageCluster})
		}
	}
	return out, nil
}
