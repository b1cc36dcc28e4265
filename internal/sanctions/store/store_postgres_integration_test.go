//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pldft/internal/sanctions/models"
	"pldft/internal/sanctions/store"
	"pldft/pkg/platform/sentinel"
	"pldft/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.Require().NoError(store.Migrate(context.Background(), s.postgres.DB, nil))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "sanctions", "identity_profiles")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) upsert(ctx context.Context, records ...models.CanonicalRecord) (created int) {
	err := s.store.RunInTx(ctx, "test", func(tx store.Tx) error {
		for _, rec := range records {
			ok, err := tx.Upsert(ctx, rec)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	s.Require().NoError(err)
	return created
}

func (s *PostgresStoreSuite) TestUpsertRoundTrip() {
	ctx := context.Background()
	listed := time.Date(2012, 12, 31, 0, 0, 0, 0, time.UTC)
	rec := models.CanonicalRecord{
		Source:       models.SourceUNConsolidated,
		DataID:       "6907993",
		EntityName:   "ERIC BADEGE",
		Program:      "DRC",
		ListedOn:     &listed,
		Aliases:      []models.Alias{{Quality: "Good", Name: "Eric Badege"}},
		Designations: []string{"Commander"},
		StrongKey:    "BADEGE1971",
	}

	s.Equal(1, s.upsert(ctx, rec))
	s.Equal(0, s.upsert(ctx, rec))

	recs, err := s.store.SearchExact(ctx, "eric badege", 10)
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	got := recs[0]
	s.Equal("DRC", got.Program)
	s.Require().NotNil(got.ListedOn)
	s.True(listed.Equal(*got.ListedOn))
	s.Equal(rec.Aliases, got.Aliases)
	s.Equal(rec.Designations, got.Designations)
	s.Equal("BADEGE1971", got.StrongKey)
	s.Nil(got.ProfileID)
	s.False(got.HasEmbedding)
}

func (s *PostgresStoreSuite) TestUpsertPreservesProfileAndEmbedding() {
	ctx := context.Background()
	s.upsert(ctx, models.CanonicalRecord{Source: "A", DataID: "1", EntityName: "ALPHA"})
	recs, err := s.store.SearchExact(ctx, "alpha", 1)
	s.Require().NoError(err)
	id := recs[0].ID

	vec := make([]float32, store.EmbeddingDimensions)
	vec[0] = 1
	s.Require().NoError(s.store.SetEmbedding(ctx, id, vec))

	profileID := uuid.New()
	s.Require().NoError(s.store.RunInTx(ctx, "cluster", func(tx store.Tx) error {
		if err := tx.CreateProfile(ctx, models.IdentityProfile{ID: profileID, PrimaryName: "ALPHA"}); err != nil {
			return err
		}
		_, err := tx.AssignProfile(ctx, profileID, []int64{id})
		return err
	}))

	s.upsert(ctx, models.CanonicalRecord{Source: "A", DataID: "1", EntityName: "ALPHA PRIME"})

	got, err := s.store.Get(ctx, id)
	s.Require().NoError(err)
	s.Equal("ALPHA PRIME", got.EntityName)
	s.True(got.HasEmbedding)
	s.Require().NotNil(got.ProfileID)
	s.Equal(profileID, *got.ProfileID)

	hits, err := s.store.SearchVector(ctx, vec, 5)
	s.Require().NoError(err)
	s.Require().Len(hits, 1)
	s.InDelta(0, hits[0].Score, 1e-6)
}

func (s *PostgresStoreSuite) TestRollbackAndScopedDelete() {
	ctx := context.Background()
	s.upsert(ctx,
		models.CanonicalRecord{Source: "A", DataID: "1", EntityName: "ALPHA"},
		models.CanonicalRecord{Source: "B", DataID: "1", EntityName: "BRAVO"},
	)

	boom := errors.New("boom")
	err := s.store.RunInTx(ctx, "A", func(tx store.Tx) error {
		n, err := tx.DeleteByDataIDs(ctx, "A", []string{"1"})
		s.Require().NoError(err)
		s.Equal(1, n)
		return boom
	})
	s.ErrorIs(err, boom)

	n, err := s.store.CountBySource(ctx, "A")
	s.Require().NoError(err)
	s.Equal(1, n)

	s.Require().NoError(s.store.RunInTx(ctx, "A", func(tx store.Tx) error {
		_, err := tx.DeleteByDataIDs(ctx, "A", []string{"1"})
		return err
	}))
	n, err = s.store.CountBySource(ctx, "B")
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *PostgresStoreSuite) TestFuzzySearch() {
	ctx := context.Background()
	s.upsert(ctx,
		models.CanonicalRecord{Source: "A", DataID: "1", EntityName: "ERIC BADEGE"},
		models.CanonicalRecord{Source: "A", DataID: "2", EntityName: "ERIK BADEGUE"},
		models.CanonicalRecord{Source: "A", DataID: "3", EntityName: "JOHN DOE"},
	)

	hits, err := s.store.SearchFuzzy(ctx, "ERIC BADEGE", 0.3, 10)
	s.Require().NoError(err)
	s.Require().Len(hits, 2)
	s.Equal("1", hits[0].Record.DataID)
	s.Greater(hits[0].Score, hits[1].Score)
}

func (s *PostgresStoreSuite) TestAdvisoryLockSerializesWriters() {
	ctx := context.Background()
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		inside int
		peak   int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.RunInTx(ctx, "SAME_SCOPE", func(tx store.Tx) error {
				mu.Lock()
				inside++
				if inside > peak {
					peak = inside
				}
				mu.Unlock()
				time.Sleep(50 * time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()
	s.Equal(1, peak)
}

func (s *PostgresStoreSuite) TestProfileErrors() {
	ctx := context.Background()
	profileID := uuid.New()
	err := s.store.RunInTx(ctx, "cluster", func(tx store.Tx) error {
		return tx.TouchProfile(ctx, profileID)
	})
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.GetProfile(ctx, profileID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
