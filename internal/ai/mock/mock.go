// Package mock provides function-field doubles for the AI collaborators.
package mock

import (
	"context"
	"sync"

	"pldft/internal/sanctions/models"
)

// Embedder returns EmbedFunc's result and counts calls.
type Embedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	mu    sync.Mutex
	calls []string
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	e.mu.Unlock()
	if e.EmbedFunc == nil {
		return nil, nil
	}
	return e.EmbedFunc(ctx, text)
}

// Calls returns the texts embedded so far.
func (e *Embedder) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// Classifier answers with ClassifyFunc, or "NO" when unset.
type Classifier struct {
	ClassifyFunc func(ctx context.Context, a, b models.SanctionRecord) (string, error)

	mu    sync.Mutex
	pairs [][2]int64
}

func (c *Classifier) Classify(ctx context.Context, a, b models.SanctionRecord) (string, error) {
	c.mu.Lock()
	c.pairs = append(c.pairs, [2]int64{a.ID, b.ID})
	c.mu.Unlock()
	if c.ClassifyFunc == nil {
		return "NO", nil
	}
	return c.ClassifyFunc(ctx, a, b)
}

// Pairs returns the record id pairs classified so far.
func (c *Classifier) Pairs() [][2]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][2]int64(nil), c.pairs...)
}

// Summarizer returns SummarizeFunc's result.
type Summarizer struct {
	SummarizeFunc func(ctx context.Context, query, formatted string) (string, error)
}

func (s *Summarizer) Summarize(ctx context.Context, query, formatted string) (string, error) {
	if s.SummarizeFunc == nil {
		return "", nil
	}
	return s.SummarizeFunc(ctx, query, formatted)
}
