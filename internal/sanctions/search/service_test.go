package search

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store
//go:generate mockgen -source=../ports/ai.go -destination=mocks/embedder.go -package=mocks Embedder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pldft/internal/sanctions/metrics"
	"pldft/internal/sanctions/models"
	"pldft/internal/sanctions/search/mocks"
	dErrors "pldft/pkg/domain-errors"
)

type SearchServiceSuite struct {
	suite.Suite
	ctx          context.Context
	ctrl         *gomock.Controller
	mockStore    *mocks.MockStore
	mockEmbedder *mocks.MockEmbedder
	service      *Service
}

func TestSearchServiceSuite(t *testing.T) {
	suite.Run(t, new(SearchServiceSuite))
}

func (s *SearchServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockEmbedder = mocks.NewMockEmbedder(s.ctrl)
	var err error
	s.service, err = New(s.mockStore,
		WithEmbedder(s.mockEmbedder),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)
}

func (s *SearchServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func record(id int64, name string) models.SanctionRecord {
	return models.SanctionRecord{ID: id, CanonicalRecord: models.CanonicalRecord{EntityName: name}}
}

func ids(matches []models.Match) []int64 {
	out := make([]int64, len(matches))
	for i, m := range matches {
		out[i] = m.Record.ID
	}
	return out
}

func (s *SearchServiceSuite) TestNew() {
	_, err := New(nil)
	s.Error(err)
}

func (s *SearchServiceSuite) TestValidation() {
	_, err := s.service.Search(s.ctx, " a ", 5)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *SearchServiceSuite) TestExactShortCircuits() {
	s.mockStore.EXPECT().SearchExact(gomock.Any(), "BADEGE", 2).
		Return([]models.SanctionRecord{record(1, "ERIC BADEGE"), record(2, "BADEGE ERIC")}, nil)
	// Fuzzy, vector and embedder must not be called.

	matches, err := s.service.Search(s.ctx, "  BADEGE ", 2)
	s.Require().NoError(err)
	s.Equal([]int64{1, 2}, ids(matches))
	s.Equal(models.StageExact, matches[0].Stage)
}

func (s *SearchServiceSuite) TestCascadeMergesAndDedupes() {
	gomock.InOrder(
		s.mockStore.EXPECT().SearchExact(gomock.Any(), "eric", 4).
			Return([]models.SanctionRecord{record(1, "ERIC")}, nil),
		s.mockStore.EXPECT().SearchFuzzy(gomock.Any(), "eric", DefaultFuzzyThreshold, 4).
			Return([]models.ScoredRecord{{Record: record(1, "ERIC"), Score: 1}, {Record: record(2, "ERIK"), Score: 0.5}}, nil),
		s.mockEmbedder.EXPECT().Embed(gomock.Any(), "eric").Return([]float32{1, 0}, nil),
		s.mockStore.EXPECT().SearchVector(gomock.Any(), []float32{1, 0}, 4).
			Return([]models.ScoredRecord{{Record: record(2, "ERIK"), Score: 0.1}, {Record: record(3, "ERICA"), Score: 0.2}}, nil),
	)

	matches, err := s.service.Search(s.ctx, "eric", 4)
	s.Require().NoError(err)
	s.Equal([]int64{1, 2, 3}, ids(matches))
	s.Equal(models.StageFuzzy, matches[1].Stage)
	s.InDelta(0.5, matches[1].Score, 1e-9)
	s.Equal(models.StageVector, matches[2].Stage)
}

func (s *SearchServiceSuite) TestFuzzyFillsLimitSkipsVector() {
	s.mockStore.EXPECT().SearchExact(gomock.Any(), "eric", 2).Return(nil, nil)
	s.mockStore.EXPECT().SearchFuzzy(gomock.Any(), "eric", DefaultFuzzyThreshold, 2).
		Return([]models.ScoredRecord{{Record: record(5, "ERIK")}, {Record: record(6, "ERICA")}}, nil)

	matches, err := s.service.Search(s.ctx, "eric", 2)
	s.Require().NoError(err)
	s.Equal([]int64{5, 6}, ids(matches))
}

func (s *SearchServiceSuite) TestOptionalStagesDegrade() {
	s.Run("fuzzy and embedder failures are skipped", func() {
		s.mockStore.EXPECT().SearchExact(gomock.Any(), "eric", 10).Return([]models.SanctionRecord{record(1, "ERIC")}, nil)
		s.mockStore.EXPECT().SearchFuzzy(gomock.Any(), "eric", DefaultFuzzyThreshold, 10).Return(nil, errors.New("function similarity does not exist"))
		s.mockEmbedder.EXPECT().Embed(gomock.Any(), "eric").Return(nil, context.DeadlineExceeded)

		matches, err := s.service.Search(s.ctx, "eric", 0)
		s.Require().NoError(err)
		s.Equal([]int64{1}, ids(matches))
	})

	s.Run("vector store failure is skipped", func() {
		s.mockStore.EXPECT().SearchExact(gomock.Any(), "eric", 10).Return(nil, nil)
		s.mockStore.EXPECT().SearchFuzzy(gomock.Any(), "eric", DefaultFuzzyThreshold, 10).Return(nil, nil)
		s.mockEmbedder.EXPECT().Embed(gomock.Any(), "eric").Return([]float32{1}, nil)
		s.mockStore.EXPECT().SearchVector(gomock.Any(), []float32{1}, 10).Return(nil, errors.New("type vector does not exist"))

		matches, err := s.service.Search(s.ctx, "eric", 10)
		s.Require().NoError(err)
		s.Empty(matches)
	})

	s.Run("no embedder configured", func() {
		svc, err := New(s.mockStore, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		s.Require().NoError(err)
		s.mockStore.EXPECT().SearchExact(gomock.Any(), "eric", 10).Return(nil, nil)
		s.mockStore.EXPECT().SearchFuzzy(gomock.Any(), "eric", DefaultFuzzyThreshold, 10).Return(nil, nil)

		matches, err := svc.Search(s.ctx, "eric", 10)
		s.Require().NoError(err)
		s.Empty(matches)
	})

	s.Run("exact failure falls through to fuzzy", func() {
		s.mockStore.EXPECT().SearchExact(gomock.Any(), "eric", 10).Return(nil, errors.New("statement timeout"))
		s.mockStore.EXPECT().SearchFuzzy(gomock.Any(), "eric", DefaultFuzzyThreshold, 10).
			Return([]models.ScoredRecord{{Record: record(5, "ERIK"), Score: 0.6}}, nil)
		s.mockEmbedder.EXPECT().Embed(gomock.Any(), "eric").Return(nil, context.DeadlineExceeded)

		matches, err := s.service.Search(s.ctx, "eric", 10)
		s.Require().NoError(err)
		s.Equal([]int64{5}, ids(matches))
		s.Equal(models.StageFuzzy, matches[0].Stage)
	})

	s.Run("exact failure with empty fuzzy result is not an error", func() {
		s.mockStore.EXPECT().SearchExact(gomock.Any(), "eric", 10).Return(nil, errors.New("statement timeout"))
		s.mockStore.EXPECT().SearchFuzzy(gomock.Any(), "eric", DefaultFuzzyThreshold, 10).Return(nil, nil)
		s.mockEmbedder.EXPECT().Embed(gomock.Any(), "eric").Return(nil, errors.New("down"))

		matches, err := s.service.Search(s.ctx, "eric", 10)
		s.Require().NoError(err)
		s.Empty(matches)
	})

	s.Run("every stage failing fails the search", func() {
		boom := errors.New("connection refused")
		s.mockStore.EXPECT().SearchExact(gomock.Any(), "eric", 10).Return(nil, boom)
		s.mockStore.EXPECT().SearchFuzzy(gomock.Any(), "eric", DefaultFuzzyThreshold, 10).Return(nil, boom)
		s.mockEmbedder.EXPECT().Embed(gomock.Any(), "eric").Return(nil, errors.New("down"))

		_, err := s.service.Search(s.ctx, "eric", 10)
		s.ErrorIs(err, boom)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *SearchServiceSuite) TestLimitIsCapped() {
	s.mockStore.EXPECT().SearchExact(gomock.Any(), "eric", DefaultMaxLimit).Return(nil, nil)
	s.mockStore.EXPECT().SearchFuzzy(gomock.Any(), "eric", DefaultFuzzyThreshold, DefaultMaxLimit).Return(nil, nil)
	s.mockEmbedder.EXPECT().Embed(gomock.Any(), "eric").Return(nil, errors.New("down"))

	_, err := s.service.Search(s.ctx, "eric", 1000)
	s.Require().NoError(err)
}

func (s *SearchServiceSuite) TestExpansionAppendsSiblings() {
	profileID := uuid.New()
	hit := record(1, "ERIC BADEGE")
	hit.ProfileID = &profileID
	sibling := record(7, "BADEGE, ERIC")
	sibling.ProfileID = &profileID

	s.mockStore.EXPECT().SearchExact(gomock.Any(), "badege", 1).Return([]models.SanctionRecord{hit}, nil)
	s.mockStore.EXPECT().ListByProfiles(gomock.Any(), []uuid.UUID{profileID}).
		Return([]models.SanctionRecord{hit, sibling}, nil)

	matches, err := s.service.Search(s.ctx, "badege", 1)
	s.Require().NoError(err)
	s.Equal([]int64{1, 7}, ids(matches))
	s.Equal(models.StageCluster, matches[1].Stage)
}

func (s *SearchServiceSuite) TestExpansionFailureReturnsDirectMatches() {
	profileID := uuid.New()
	hit := record(1, "ERIC BADEGE")
	hit.ProfileID = &profileID

	s.mockStore.EXPECT().SearchExact(gomock.Any(), "badege", 1).Return([]models.SanctionRecord{hit}, nil)
	s.mockStore.EXPECT().ListByProfiles(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

	matches, err := s.service.Search(s.ctx, "badege", 1)
	s.Require().NoError(err)
	s.Equal([]int64{1}, ids(matches))
}
