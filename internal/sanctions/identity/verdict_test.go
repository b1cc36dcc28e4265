package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"pldft/internal/ai/mock"
	"pldft/internal/sanctions/models"
	"pldft/internal/sanctions/store"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		answer string
		want   models.MatchVerdict
	}{
		{"YES", models.VerdictMatch},
		{" yes.\n", models.VerdictMatch},
		{"'Yes'", models.VerdictMatch},
		{"NO", models.VerdictNoMatch},
		{"no!", models.VerdictNoMatch},
		{"", models.VerdictIndeterminate},
		{"Yes, probably not", models.VerdictIndeterminate},
		{"I cannot say YES or NO", models.VerdictIndeterminate},
		{"maybe", models.VerdictIndeterminate},
		{"NOPE", models.VerdictIndeterminate},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseVerdict(tt.answer))
		})
	}
}

func TestProposeMatchFailsClosed(t *testing.T) {
	ctx := context.Background()
	a := models.SanctionRecord{ID: 1}
	b := models.SanctionRecord{ID: 2}

	t.Run("no classifier", func(t *testing.T) {
		r := New(store.NewInMemoryStore())
		assert.Equal(t, models.VerdictIndeterminate, r.ProposeMatch(ctx, a, b))
	})

	t.Run("classifier error", func(t *testing.T) {
		c := &mock.Classifier{ClassifyFunc: func(context.Context, models.SanctionRecord, models.SanctionRecord) (string, error) {
			return "", errors.New("rate limited")
		}}
		r := New(store.NewInMemoryStore(), WithClassifier(c))
		assert.Equal(t, models.VerdictIndeterminate, r.ProposeMatch(ctx, a, b))
	})

	t.Run("decisive answer", func(t *testing.T) {
		c := &mock.Classifier{ClassifyFunc: func(context.Context, models.SanctionRecord, models.SanctionRecord) (string, error) {
			return "Yes", nil
		}}
		r := New(store.NewInMemoryStore(), WithClassifier(c))
		assert.Equal(t, models.VerdictMatch, r.ProposeMatch(ctx, a, b))
		assert.Equal(t, [][2]int64{{1, 2}}, c.Pairs())
	})
}
