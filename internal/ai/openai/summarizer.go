package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"pldft/internal/ai"
	"pldft/pkg/platform/sentinel"
)

// Summarizer writes a compliance narrative with the classifier chat model.
type Summarizer struct {
	client llms.Model
	logger *slog.Logger
}

func NewSummarizer(cfg *ai.Config) (*Summarizer, error) {
	client, err := newChatModel(cfg)
	if err != nil {
		return nil, err
	}
	return &Summarizer{client: client, logger: slog.Default().With("component", "openai-summarizer")}, nil
}

func (s *Summarizer) Summarize(ctx context.Context, query, formatted string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, s.client, summaryPrompt(query, formatted), llms.WithTemperature(0.0))
	if err != nil {
		s.logger.Debug("summary failed", "error", err)
		return "", fmt.Errorf("summary provider: %w: %w", sentinel.ErrUnavailable, err)
	}
	return out, nil
}
