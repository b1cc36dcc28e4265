// Package openai implements the embedding, classification and summary
// collaborators on OpenAI-compatible APIs through langchaingo.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"pldft/internal/ai"
	"pldft/pkg/platform/sentinel"
)

// Embedder embeds query and record names.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

func NewEmbedder(cfg *ai.Config) (*Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.EmbeddingHost),
		openai.WithToken(cfg.Token()),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &Embedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// Embed returns the vector for text. Provider failures wrap
// sentinel.ErrUnavailable.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("embed empty text: %w", sentinel.ErrInvalidState)
	}
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Debug("embedding request failed", "length", len(text), "error", err)
		return nil, fmt.Errorf("embedding provider: %w: %w", sentinel.ErrUnavailable, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedding provider returned no vector: %w", sentinel.ErrUnavailable)
	}
	return vec, nil
}
