// Package strategy implements the discovery methods that turn a source into
// a list of candidate articles, and the orchestrator that tries them in
// priority order.
package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// PageFetcher is the slice of the fetch layer strategies need. Every request
// a strategy performs goes through the politeness controller behind it.
type PageFetcher interface {
	Get(ctx context.Context, source ingest.Source, url string) (ingest.FetchAttempt, error)
}

// Discoverer is one method of obtaining candidate articles for a source.
// Adding a strategy means adding a variant, not touching the orchestrator.
type Discoverer interface {
	Kind() ingest.StrategyKind
	Discover(ctx context.Context, source ingest.Source) ([]ingest.CandidateArticle, error)
}

// Orchestrator tries a source's strategies in its configured priority order.
// Strategies are alternatives, not cumulative: the first one yielding at
// least one candidate wins and no further strategy is attempted.
type Orchestrator struct {
	strategies map[ingest.StrategyKind]Discoverer
	logger     *zap.Logger
}

// NewOrchestrator registers the available strategy variants.
func NewOrchestrator(logger *zap.Logger, variants ...Discoverer) *Orchestrator {
	byKind := make(map[ingest.StrategyKind]Discoverer, len(variants))
	for _, v := range variants {
		byKind[v.Kind()] = v
	}
	return &Orchestrator{strategies: byKind, logger: logger}
}

// Discover walks the priority list. A failing or empty strategy is non-fatal
// and logged; only exhausting every configured strategy is an error.
func (o *Orchestrator) Discover(ctx context.Context, source ingest.Source) ([]ingest.CandidateArticle, ingest.StrategyKind, error) {
	for _, kind := range source.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, "", fmt.Errorf("discover canceled: %w", err)
		}
		variant, ok := o.strategies[kind]
		if !ok {
			o.logger.Warn("strategy not available",
				zap.String("source", source.ID),
				zap.String("strategy", string(kind)))
			continue
		}
		candidates, err := variant.Discover(ctx, source)
		if err != nil {
			o.logger.Warn("strategy failed; advancing to next",
				zap.String("source", source.ID),
				zap.String("strategy", string(kind)),
				zap.Error(err))
			continue
		}
		if len(candidates) == 0 {
			o.logger.Debug("strategy yielded no candidates",
				zap.String("source", source.ID),
				zap.String("strategy", string(kind)))
			continue
		}
		o.logger.Info("strategy selected",
			zap.String("source", source.ID),
			zap.String("strategy", string(kind)),
			zap.Int("candidates", len(candidates)))
		return candidates, kind, nil
	}
	return nil, "", fmt.Errorf("source %s: %w", source.ID, ingest.ErrStrategyExhausted)
}
