// Package summary turns search results into a short narrative for a
// compliance analyst.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pldft/internal/sanctions/models"
	"pldft/internal/sanctions/ports"
	dErrors "pldft/pkg/domain-errors"
)

const (
	UnavailableMessage = "LLM analysis unavailable (no summarizer configured)."
	noResultsFormat    = "No results found for '%s'. The individual/entity does not appear in the sanctions lists based on the search criteria."
)

// Service summarizes matches through an optional Summarizer.
type Service struct {
	summarizer ports.Summarizer
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New accepts a nil summarizer; Summarize then returns UnavailableMessage.
func New(summarizer ports.Summarizer, opts ...Option) *Service {
	s := &Service{summarizer: summarizer, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize returns a fixed message when there is nothing to analyse or no
// summarizer, and the summarizer's narrative otherwise.
func (s *Service) Summarize(ctx context.Context, query string, matches []models.Match) (string, error) {
	query = strings.TrimSpace(query)
	if len(matches) == 0 {
		return fmt.Sprintf(noResultsFormat, query), nil
	}
	if s.summarizer == nil {
		return UnavailableMessage, nil
	}
	out, err := s.summarizer.Summarize(ctx, query, Format(matches))
	if err != nil {
		s.logger.Error("summary generation failed", "query_len", len(query), "results", len(matches), "error", err)
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "generate summary")
	}
	return strings.TrimSpace(out), nil
}

// Format renders matches as one numbered line each.
func Format(matches []models.Match) string {
	var b strings.Builder
	for i, m := range matches {
		rec := m.Record
		fmt.Fprintf(&b, "%d. Name: %s, Source: %s, Program: %s, ID: %s, Stage: %s\n",
			i+1, rec.EntityName, rec.Source, rec.Program, rec.ReferenceNumber, m.Stage)
	}
	return b.String()
}
