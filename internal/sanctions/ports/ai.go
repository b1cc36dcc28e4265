package ports

import (
	"context"

	"pldft/internal/sanctions/models"
)

// Embedder turns text into a fixed-width vector. Implementations return an
// error wrapping sentinel.ErrUnavailable when the provider cannot be reached;
// callers treat any error as "vector search unavailable for this call".
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Classifier answers whether two records describe the same identity. The
// answer is free text and is interpreted by the identity resolver.
type Classifier interface {
	Classify(ctx context.Context, a, b models.SanctionRecord) (string, error)
}

// Summarizer writes a narrative from a formatted list of matches.
type Summarizer interface {
	Summarize(ctx context.Context, query, formatted string) (string, error)
}
