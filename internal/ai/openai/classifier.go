package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"pldft/internal/ai"
	"pldft/internal/sanctions/models"
	"pldft/pkg/platform/sentinel"
)

// Classifier asks a chat model whether two records are the same identity.
// The raw answer is returned; interpretation belongs to the caller.
type Classifier struct {
	client llms.Model
	logger *slog.Logger
}

func newChatModel(cfg *ai.Config) (llms.Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.ClassifierHost),
		openai.WithToken(cfg.Token()),
		openai.WithModel(cfg.ClassifierModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}
	return client, nil
}

func NewClassifier(cfg *ai.Config) (*Classifier, error) {
	client, err := newChatModel(cfg)
	if err != nil {
		return nil, err
	}
	return &Classifier{client: client, logger: slog.Default().With("component", "openai-classifier")}, nil
}

func (c *Classifier) Classify(ctx context.Context, a, b models.SanctionRecord) (string, error) {
	answer, err := llms.GenerateFromSinglePrompt(ctx, c.client, classifierPrompt(a, b),
		llms.WithTemperature(0.0),
		llms.WithMaxTokens(5),
	)
	if err != nil {
		c.logger.Debug("classification failed", "left_id", a.ID, "right_id", b.ID, "error", err)
		return "", fmt.Errorf("classifier provider: %w: %w", sentinel.ErrUnavailable, err)
	}
	return answer, nil
}
