package search

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pldft/internal/sanctions/models"
	"pldft/internal/sanctions/store"
)

func TestExpandReturnsEveryProfileMember(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()

	var memberIDs []int64
	profileID := uuid.New()
	require.NoError(t, st.RunInTx(ctx, "seed", func(tx store.Tx) error {
		for _, src := range []string{"A", "B", "C"} {
			if _, err := tx.Upsert(ctx, models.CanonicalRecord{Source: src, DataID: "1", EntityName: "SHARED " + src, StrongKey: "X"}); err != nil {
				return err
			}
		}
		if _, err := tx.Upsert(ctx, models.CanonicalRecord{Source: "A", DataID: "2", EntityName: "OUTSIDER"}); err != nil {
			return err
		}
		members, err := tx.ListByStrongKey(ctx, "X")
		if err != nil {
			return err
		}
		for _, m := range members {
			memberIDs = append(memberIDs, m.ID)
		}
		if err := tx.CreateProfile(ctx, models.IdentityProfile{ID: profileID, PrimaryName: "SHARED A"}); err != nil {
			return err
		}
		_, err = tx.AssignProfile(ctx, profileID, memberIDs)
		return err
	}))

	hits, err := st.SearchExact(ctx, "SHARED B", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	outsider, err := st.SearchExact(ctx, "OUTSIDER", 1)
	require.NoError(t, err)

	initial := []models.Match{
		{Record: hits[0], Stage: models.StageExact},
		{Record: outsider[0], Stage: models.StageExact},
	}
	expanded, err := NewExpander(st).Expand(ctx, initial)
	require.NoError(t, err)
	require.Len(t, expanded, 4)

	assert.Equal(t, hits[0].ID, expanded[0].Record.ID)
	assert.Equal(t, outsider[0].ID, expanded[1].Record.ID)
	got := []int64{expanded[0].Record.ID, expanded[2].Record.ID, expanded[3].Record.ID}
	assert.ElementsMatch(t, memberIDs, got)
	assert.Equal(t, models.StageCluster, expanded[2].Stage)
	assert.Less(t, expanded[2].Record.ID, expanded[3].Record.ID)
}

func TestExpandWithoutProfilesIsIdentity(t *testing.T) {
	initial := []models.Match{{Record: models.SanctionRecord{ID: 1}}}
	out, err := NewExpander(nil).Expand(context.Background(), initial)
	require.NoError(t, err)
	assert.Equal(t, initial, out)
}
