package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// Reprocess re-runs entity resolution over already persisted articles with
// the currently loaded gazetteer, then re-emits their events. Nothing is
// refetched; articles keep their stored content.
func (r *Runner) Reprocess(ctx context.Context, req ingest.ReprocessRequest, sources []ingest.Source) error {
	bySource := make(map[string]ingest.Source, len(sources))
	for _, s := range sources {
		bySource[s.ID] = s
	}

	articles, err := r.reprocessTargets(ctx, req)
	if err != nil {
		return err
	}
	r.deps.Logger.Info("reprocess started",
		zap.String("scope", string(req.Scope)),
		zap.String("reason", req.Reason),
		zap.String("requester", req.Requester),
		zap.Int("articles", len(articles)))

	col := &collector{}
	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("reprocess canceled: %w", err)
		}
		if article.Status != ingest.StatusOK {
			r.deps.Logger.Debug("skipping non-ok article",
				zap.String("article_id", article.ID),
				zap.String("status", string(article.Status)))
			continue
		}
		source, ok := bySource[article.SourceID]
		if !ok {
			r.deps.Logger.Warn("article source no longer configured; skipping",
				zap.String("article_id", article.ID),
				zap.String("source", article.SourceID))
			continue
		}
		resolution, err := r.deps.Resolver.Resolve(ctx, source, article)
		if err != nil {
			return fmt.Errorf("resolve article %s: %w", article.ID, err)
		}
		for _, mention := range resolution.Mentions {
			if err := r.deps.Entities.UpsertMention(ctx, mention); err != nil {
				return fmt.Errorf("upsert mention for %s: %w", article.ID, err)
			}
		}
		r.publish(ctx, ingest.ArticleIngested{
			ArticleID:       article.ID,
			SourceID:        article.SourceID,
			PublishedAt:     article.PublishedAt,
			Cities:          resolution.Cities,
			People:          resolution.Persons,
			PipelineVersion: r.cfg.Version,
		}, col, r.deps.Logger)
	}
	if col.degraded {
		return fmt.Errorf("reprocess finished with %d degraded publishes", len(col.errs))
	}
	return nil
}

func (r *Runner) reprocessTargets(ctx context.Context, req ingest.ReprocessRequest) ([]ingest.Article, error) {
	switch req.Scope {
	case ingest.ReprocessArticle:
		if req.ArticleID == "" {
			return nil, fmt.Errorf("article scope requires article_id")
		}
		article, err := r.deps.Articles.Get(ctx, req.ArticleID)
		if err != nil {
			return nil, fmt.Errorf("load article %s: %w", req.ArticleID, err)
		}
		return []ingest.Article{article}, nil
	case ingest.ReprocessSource:
		if req.SourceID == "" {
			return nil, fmt.Errorf("source scope requires source_id")
		}
		from := time.Time{}
		to := r.deps.Clock.Now().Add(24 * time.Hour)
		if req.From != nil {
			from = *req.From
		}
		if req.To != nil {
			to = *req.To
		}
		articles, err := r.deps.Articles.ListBySource(ctx, req.SourceID, from, to)
		if err != nil {
			return nil, fmt.Errorf("list articles for %s: %w", req.SourceID, err)
		}
		return articles, nil
	default:
		return nil, fmt.Errorf("unknown reprocess scope %q", req.Scope)
	}
}
