package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pldft/internal/sanctions/models"
	"pldft/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.store = NewInMemoryStore(WithClock(func() time.Time {
		s.now = s.now.Add(time.Second)
		return s.now
	}))
	s.ctx = context.Background()
}

func canonical(source, dataID, name string) models.CanonicalRecord {
	return models.CanonicalRecord{Source: source, DataID: dataID, EntityName: name}
}

func (s *InMemoryStoreSuite) upsert(records ...models.CanonicalRecord) {
	err := s.store.RunInTx(s.ctx, "test", func(tx Tx) error {
		for _, rec := range records {
			if _, err := tx.Upsert(s.ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	s.Require().NoError(err)
}

func (s *InMemoryStoreSuite) TestUpsert() {
	s.Run("insert then overwrite keeps identity and derived fields", func() {
		s.upsert(canonical("A", "1", "ERIC BADEGE"))
		recs, err := s.store.SearchExact(s.ctx, "badege", 10)
		s.Require().NoError(err)
		s.Require().Len(recs, 1)
		id := recs[0].ID

		s.Require().NoError(s.store.SetEmbedding(s.ctx, id, []float32{1, 0}))
		profileID := uuid.New()
		s.Require().NoError(s.store.RunInTx(s.ctx, "cluster", func(tx Tx) error {
			if err := tx.CreateProfile(s.ctx, models.IdentityProfile{ID: profileID, PrimaryName: "ERIC BADEGE"}); err != nil {
				return err
			}
			_, err := tx.AssignProfile(s.ctx, profileID, []int64{id})
			return err
		}))

		var created bool
		s.Require().NoError(s.store.RunInTx(s.ctx, "A", func(tx Tx) error {
			var err error
			rec := canonical("A", "1", "ERIC BADEGE RENAMED")
			rec.Program = "DRC"
			created, err = tx.Upsert(s.ctx, rec)
			return err
		}))
		s.False(created)

		got, err := s.store.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal("ERIC BADEGE RENAMED", got.EntityName)
		s.Equal("DRC", got.Program)
		s.Require().NotNil(got.ProfileID)
		s.Equal(profileID, *got.ProfileID)
		s.True(got.HasEmbedding)
		s.True(got.UpdatedAt.After(got.CreatedAt))
	})

	s.Run("missing data id rejected", func() {
		err := s.store.RunInTx(s.ctx, "A", func(tx Tx) error {
			_, err := tx.Upsert(s.ctx, canonical("A", "", "NO ID"))
			return err
		})
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *InMemoryStoreSuite) TestRunInTxRollsBack() {
	s.upsert(canonical("A", "1", "KEEP ME"))
	boom := errors.New("boom")

	err := s.store.RunInTx(s.ctx, "A", func(tx Tx) error {
		if _, err := tx.Upsert(s.ctx, canonical("A", "2", "NEW")); err != nil {
			return err
		}
		if _, err := tx.DeleteByDataIDs(s.ctx, "A", []string{"1"}); err != nil {
			return err
		}
		n, err := tx.CountBySource(s.ctx, "A")
		s.Require().NoError(err)
		s.Equal(1, n)
		return boom
	})
	s.ErrorIs(err, boom)

	n, err := s.store.CountBySource(s.ctx, "A")
	s.Require().NoError(err)
	s.Equal(1, n)
	recs, err := s.store.SearchExact(s.ctx, "keep", 0)
	s.Require().NoError(err)
	s.Len(recs, 1)
}

func (s *InMemoryStoreSuite) TestRunInTxCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	err := s.store.RunInTx(ctx, "A", func(Tx) error { return nil })
	s.ErrorIs(err, context.Canceled)
}

func (s *InMemoryStoreSuite) TestDeleteIsScopedToSource() {
	s.upsert(canonical("A", "1", "ALPHA"), canonical("B", "1", "BRAVO"))

	var deleted int
	s.Require().NoError(s.store.RunInTx(s.ctx, "A", func(tx Tx) error {
		var err error
		deleted, err = tx.DeleteByDataIDs(s.ctx, "A", []string{"1", "missing"})
		return err
	}))
	s.Equal(1, deleted)

	n, err := s.store.CountBySource(s.ctx, "B")
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *InMemoryStoreSuite) TestSearch() {
	withAlias := canonical("A", "2", "JOHN DOE")
	withAlias.Aliases = []models.Alias{{Name: "Johnny Badass"}}
	s.upsert(canonical("A", "1", "ERIC BADEGE"), withAlias, canonical("B", "3", "ERIK BADEGUE"))

	s.Run("exact matches names and alias names", func() {
		recs, err := s.store.SearchExact(s.ctx, "BAD", 10)
		s.Require().NoError(err)
		s.Len(recs, 3)

		recs, err = s.store.SearchExact(s.ctx, "johnny", 10)
		s.Require().NoError(err)
		s.Require().Len(recs, 1)
		s.Equal("2", recs[0].DataID)
	})

	s.Run("exact respects limit and treats wildcards literally", func() {
		recs, err := s.store.SearchExact(s.ctx, "BAD", 1)
		s.Require().NoError(err)
		s.Len(recs, 1)

		recs, err = s.store.SearchExact(s.ctx, "%", 10)
		s.Require().NoError(err)
		s.Empty(recs)
	})

	s.Run("fuzzy orders by similarity", func() {
		recs, err := s.store.SearchFuzzy(s.ctx, "ERIC BADEGE", 0.3, 10)
		s.Require().NoError(err)
		s.Require().GreaterOrEqual(len(recs), 2)
		s.Equal("1", recs[0].Record.DataID)
		s.InDelta(1.0, recs[0].Score, 1e-9)
		s.Equal("3", recs[1].Record.DataID)
		s.Greater(recs[1].Score, 0.3)
	})

	s.Run("vector orders by distance and skips unembedded", func() {
		one, err := s.store.SearchExact(s.ctx, "ERIC", 1)
		s.Require().NoError(err)
		erik, err := s.store.SearchExact(s.ctx, "ERIK", 1)
		s.Require().NoError(err)
		s.Require().NoError(s.store.SetEmbedding(s.ctx, one[0].ID, []float32{1, 0}))
		s.Require().NoError(s.store.SetEmbedding(s.ctx, erik[0].ID, []float32{0, 1}))

		recs, err := s.store.SearchVector(s.ctx, []float32{0.1, 1}, 10)
		s.Require().NoError(err)
		s.Require().Len(recs, 2)
		s.Equal(erik[0].ID, recs[0].Record.ID)
		s.Less(recs[0].Score, recs[1].Score)

		missing, err := s.store.ListMissingEmbeddings(s.ctx, 0)
		s.Require().NoError(err)
		s.Require().Len(missing, 1)
		s.Equal("2", missing[0].DataID)
	})
}

func (s *InMemoryStoreSuite) TestProfiles() {
	a := canonical("A", "1", "FIRST")
	a.StrongKey = "X"
	b := canonical("B", "1", "SECOND")
	b.StrongKey = "X"
	c := canonical("C", "1", "LONER")
	c.StrongKey = "Y"
	s.upsert(a, b, c)

	profileID := uuid.New()
	s.Require().NoError(s.store.RunInTx(s.ctx, "cluster", func(tx Tx) error {
		keys, err := tx.SharedStrongKeys(s.ctx)
		s.Require().NoError(err)
		s.Equal([]string{"X"}, keys)

		members, err := tx.ListByStrongKey(s.ctx, "X")
		s.Require().NoError(err)
		s.Require().Len(members, 2)
		s.Equal("FIRST", members[0].EntityName)

		s.Require().NoError(tx.CreateProfile(s.ctx, models.IdentityProfile{ID: profileID, PrimaryName: members[0].EntityName}))
		s.ErrorIs(tx.CreateProfile(s.ctx, models.IdentityProfile{ID: profileID}), sentinel.ErrConflict)

		n, err := tx.AssignProfile(s.ctx, profileID, []int64{members[0].ID, members[1].ID})
		s.Require().NoError(err)
		s.Equal(2, n)

		n, err = tx.AssignProfile(s.ctx, profileID, []int64{members[0].ID})
		s.Require().NoError(err)
		s.Zero(n)

		_, err = tx.AssignProfile(s.ctx, uuid.New(), []int64{members[0].ID})
		s.ErrorIs(err, sentinel.ErrNotFound)
		return tx.TouchProfile(s.ctx, profileID)
	}))

	members, err := s.store.ListByProfiles(s.ctx, []uuid.UUID{profileID})
	s.Require().NoError(err)
	s.Len(members, 2)

	unassigned, err := s.store.ListUnassigned(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(unassigned, 1)
	s.Equal("LONER", unassigned[0].EntityName)

	p, err := s.store.GetProfile(s.ctx, profileID)
	s.Require().NoError(err)
	s.Equal("FIRST", p.PrimaryName)
	s.True(p.UpdatedAt.After(p.CreatedAt))

	_, err = s.store.GetProfile(s.ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
