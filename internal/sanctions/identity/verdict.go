package identity

import (
	"context"
	"strings"
	"unicode"

	"pldft/internal/sanctions/models"
)

// ParseVerdict interprets a free-text classifier answer. Only a bare YES or
// NO (any case, optional surrounding quotes or trailing punctuation) is
// decisive; anything else is indeterminate.
func ParseVerdict(answer string) models.MatchVerdict {
	normalized := strings.TrimFunc(answer, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	switch strings.ToUpper(normalized) {
	case "YES":
		return models.VerdictMatch
	case "NO":
		return models.VerdictNoMatch
	default:
		return models.VerdictIndeterminate
	}
}

// ProposeMatch asks the classifier whether a and b are the same identity.
// It fails closed: a missing classifier or a classifier error yields
// INDETERMINATE. Profile assignments are never modified.
func (r *Resolver) ProposeMatch(ctx context.Context, a, b models.SanctionRecord) models.MatchVerdict {
	if r.classifier == nil {
		return models.VerdictIndeterminate
	}
	answer, err := r.classifier.Classify(ctx, a, b)
	if err != nil {
		r.logger.Warn("classifier unavailable", "left_id", a.ID, "right_id", b.ID, "error", err)
		return models.VerdictIndeterminate
	}
	verdict := ParseVerdict(answer)
	if verdict == models.VerdictIndeterminate {
		r.logger.Debug("indeterminate classifier answer", "left_id", a.ID, "right_id", b.ID, "answer_len", len(answer))
	}
	return verdict
}
