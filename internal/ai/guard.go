package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pldft/internal/sanctions/ports"
	"pldft/pkg/platform/circuit"
	"pldft/pkg/platform/sentinel"
)

// GuardedEmbedder stops calling an embedding provider that keeps failing, so
// searches skip the vector stage immediately instead of waiting for the
// timeout on every query.
type GuardedEmbedder struct {
	inner   ports.Embedder
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuardedEmbedder(inner ports.Embedder, breaker *circuit.Breaker, logger *slog.Logger) *GuardedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardedEmbedder{inner: inner, breaker: breaker, logger: logger}
}

func (g *GuardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if !g.breaker.Allow() {
		return nil, fmt.Errorf("%s circuit open: %w", g.breaker.Name(), sentinel.ErrUnavailable)
	}
	vec, err := g.inner.Embed(ctx, text)
	if err != nil {
		// A caller giving up says nothing about the provider.
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.Warn("embedding provider circuit opened", "breaker", g.breaker.Name(), "error", err)
		}
		return nil, err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.Info("embedding provider circuit closed", "breaker", g.breaker.Name())
	}
	return vec, nil
}
