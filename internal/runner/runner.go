// Package runner drives the ingestion pipeline for one source: discovery,
// fetch, extraction, dedup, entity resolution, persistence and publishing.
package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/farolnews/farol-ingest/internal/canonical"
	"github.com/farolnews/farol-ingest/internal/config"
	"github.com/farolnews/farol-ingest/internal/extract"
	"github.com/farolnews/farol-ingest/internal/ingest"
	"github.com/farolnews/farol-ingest/internal/metrics"
	"github.com/farolnews/farol-ingest/internal/quality"
	"github.com/farolnews/farol-ingest/internal/render"
	"github.com/farolnews/farol-ingest/internal/resolve"
	"github.com/farolnews/farol-ingest/internal/strategy"
)

// Deps collects everything the runner needs. Memory implementations exist
// for every port, so the full pipeline runs in tests without external
// services.
type Deps struct {
	Fetcher   strategy.PageFetcher
	Discovery *strategy.Orchestrator
	Renderer  ingest.Renderer
	Polite    ingest.HostPolicy
	Detector  *render.Detector
	Extractor *extract.Extractor
	Canon     *canonical.Canonicalizer
	Gate      *quality.Gate
	Resolver  *resolve.Resolver
	Articles  ingest.ArticleStore
	Entities  ingest.EntityStore
	Jobs      ingest.JobStore
	Blobs     ingest.BlobStore
	Publisher ingest.Publisher
	Clock     ingest.Clock
	IDs       ingest.IDGenerator
	Logger    *zap.Logger
}

// Runner executes ingestion runs.
type Runner struct {
	cfg        config.PipelineConfig
	gazVersion string
	deps       Deps
}

// New creates a runner.
func New(cfg config.PipelineConfig, gazetteerVersion string, deps Deps) *Runner {
	return &Runner{cfg: cfg, gazVersion: gazetteerVersion, deps: deps}
}

// collector accumulates per-candidate outcomes under one lock.
type collector struct {
	mu       sync.Mutex
	stats    ingest.RunStats
	errs     []ingest.RunError
	degraded bool
}

func (c *collector) fetched() {
	c.mu.Lock()
	c.stats.Fetched++
	c.mu.Unlock()
}

func (c *collector) inserted() {
	c.mu.Lock()
	c.stats.Inserted++
	c.mu.Unlock()
}

func (c *collector) dupe() {
	c.mu.Lock()
	c.stats.Dupes++
	c.mu.Unlock()
}

func (c *collector) failure(code, detail string) {
	c.mu.Lock()
	c.stats.Errors++
	c.errs = append(c.errs, ingest.RunError{Code: code, Detail: detail})
	c.mu.Unlock()
}

func (c *collector) degrade(code, detail string) {
	c.mu.Lock()
	c.degraded = true
	c.errs = append(c.errs, ingest.RunError{Code: code, Detail: detail})
	c.mu.Unlock()
}

// Run executes one ingestion run against one source. The returned JobRun is
// the finalized record; a non-nil error means the run could not even be
// recorded.
func (r *Runner) Run(ctx context.Context, source ingest.Source) (ingest.JobRun, error) {
	runID, err := r.deps.IDs.NewID()
	if err != nil {
		return ingest.JobRun{}, fmt.Errorf("new run id: %w", err)
	}
	run := ingest.JobRun{
		ID:               runID,
		FlowName:         r.cfg.FlowName,
		SourceID:         source.ID,
		GazetteerVersion: r.gazVersion,
		Status:           ingest.RunRunning,
		StartedAt:        r.deps.Clock.Now(),
	}
	if err := r.deps.Jobs.CreateRun(ctx, run); err != nil {
		return ingest.JobRun{}, fmt.Errorf("create run: %w", err)
	}

	logger := r.deps.Logger.With(
		zap.String("run_id", runID),
		zap.String("source", source.ID))
	logger.Info("run started", zap.String("gazetteer_version", r.gazVersion))

	col := &collector{}
	status := r.execute(ctx, source, col, logger)

	run.Status = status
	run.Stats = col.stats
	run.Errors = col.errs
	ended := r.deps.Clock.Now()
	run.EndedAt = &ended
	// Finalize with a fresh context so a canceled run still gets its row.
	finalizeCtx := context.WithoutCancel(ctx)
	if err := r.deps.Jobs.FinalizeRun(finalizeCtx, run); err != nil {
		logger.Error("finalize run failed", zap.Error(err))
	}
	logger.Info("run finished",
		zap.String("status", string(run.Status)),
		zap.Int("fetched", run.Stats.Fetched),
		zap.Int("inserted", run.Stats.Inserted),
		zap.Int("dupes", run.Stats.Dupes),
		zap.Int("errors", run.Stats.Errors))
	return run, nil
}

// execute runs discovery and the worker pool, returning the terminal status.
func (r *Runner) execute(ctx context.Context, source ingest.Source, col *collector, logger *zap.Logger) ingest.RunStatus {
	candidates, kind, err := r.deps.Discovery.Discover(ctx, source)
	if err != nil {
		if ctx.Err() != nil {
			return ingest.RunCancelled
		}
		col.failure(ingest.ReasonStrategyFailed, err.Error())
		return ingest.RunFailed
	}
	logger.Info("candidates discovered",
		zap.String("strategy", string(kind)),
		zap.Int("count", len(candidates)))

	budget := strategy.NewBudget(len(candidates), source.HeadlessBudget)

	// A store outage aborts the whole run; workers signal it by canceling.
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	workers := r.cfg.Concurrency
	if workers <= 0 {
		workers = 1
	}
	jobs := make(chan ingest.CandidateArticle)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				if err := r.processCandidate(runCtx, source, cand, budget, col, logger); err != nil {
					if errors.Is(err, ingest.ErrStoreUnavailable) {
						cancel(ingest.ErrStoreUnavailable)
					}
				}
			}
		}()
	}
	for _, cand := range candidates {
		if runCtx.Err() != nil {
			break
		}
		jobs <- cand
	}
	close(jobs)
	wg.Wait()

	switch {
	case errors.Is(context.Cause(runCtx), ingest.ErrStoreUnavailable):
		col.failure(ingest.ReasonStorageOutage, "article store unavailable; run aborted")
		return ingest.RunFailed
	case ctx.Err() != nil:
		return ingest.RunCancelled
	case col.degraded:
		return ingest.RunDegraded
	default:
		return ingest.RunSucceeded
	}
}

// processCandidate runs one URL through the pipeline. Only a store outage is
// returned as an error; everything else is recorded on the collector.
func (r *Runner) processCandidate(ctx context.Context, source ingest.Source, cand ingest.CandidateArticle, budget *strategy.Budget, col *collector, logger *zap.Logger) error {
	attempt, err := r.fetchCandidate(ctx, source, cand, budget)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ingest.ErrRobotsDisallowed):
			col.failure(ingest.ReasonRobotsDisallowed, cand.URL)
		case errors.Is(err, ingest.ErrBudgetExhausted):
			col.failure(ingest.ReasonHeadlessBudget, cand.URL)
		default:
			col.failure(ingest.ReasonTransientFetch, fmt.Sprintf("%s: %v", cand.URL, err))
		}
		return nil
	}
	col.fetched()

	// A 304 means content is unchanged since the stored validators; the
	// article is already persisted and no event is re-emitted.
	if attempt.NotModified {
		col.dupe()
		metrics.CountArticle(source.ID, string(ingest.StatusSkippedDupe))
		return nil
	}

	pageURL := attempt.FinalURL
	if pageURL == "" {
		pageURL = cand.URL
	}
	content, err := r.deps.Extractor.Extract(source, pageURL, string(attempt.Body))
	if err != nil {
		col.failure(ingest.ReasonExtractFailed, fmt.Sprintf("%s: %v", pageURL, err))
		return nil
	}
	if content.Title == "" {
		content.Title = cand.TitleHint
	}
	if content.Title == "" {
		content.Title = source.FallbackTitle
	}
	if content.Summary == "" {
		content.Summary = cand.SummaryHint
	}
	if content.PublishedAt == nil && cand.PublishedHint != nil {
		content.PublishedAt = cand.PublishedHint
	}

	canonURL, err := r.deps.Canon.Canonicalize(pageURL)
	if err != nil {
		col.failure(ingest.ReasonExtractFailed, fmt.Sprintf("canonicalize %s: %v", pageURL, err))
		return nil
	}
	fingerprint := canonical.Fingerprint(content.Title, content.Text)

	existing, found, err := r.deps.Articles.FindByCanonicalURL(ctx, source.ID, canonURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ingest.ErrStoreUnavailable, err)
	}
	allowUpdate := false
	articleID := ""
	if found {
		if existing.Status == ingest.StatusOK {
			if existing.Fingerprint == fingerprint {
				col.dupe()
				metrics.CountArticle(source.ID, string(ingest.StatusSkippedDupe))
				return nil
			}
			if !source.AllowUpdates {
				col.dupe()
				metrics.CountArticle(source.ID, string(ingest.StatusSkippedDupe))
				logger.Debug("content changed but updates disabled",
					zap.String("url", canonURL),
					zap.String("reason", ingest.ReasonFingerprintMoved))
				return nil
			}
		}
		// A skip or error row never blocks re-ingestion; overwrite it.
		allowUpdate = true
		articleID = existing.ID
	}

	article := ingest.Article{
		ID:           articleID,
		SourceID:     source.ID,
		URL:          cand.URL,
		CanonicalURL: canonURL,
		Fingerprint:  fingerprint,
		Title:        content.Title,
		Summary:      content.Summary,
		Text:         content.Text,
		ScrapedAt:    r.deps.Clock.Now(),
		Language:     source.ExpectedLanguage,
		LeadImage:    content.LeadImage,
		Authors:      content.Authors,
		Tags:         append([]string(nil), source.DefaultTags...),
	}
	if content.PublishedAt != nil {
		article.PublishedAt = content.PublishedAt.UTC()
	}

	// The same fingerprint under a different URL is a syndicated copy.
	byPrint, foundPrint, err := r.deps.Articles.FindByFingerprint(ctx, source.ID, fingerprint)
	if err != nil {
		return fmt.Errorf("%w: %v", ingest.ErrStoreUnavailable, err)
	}
	if foundPrint && byPrint.CanonicalURL != canonURL {
		col.dupe()
		metrics.CountArticle(source.ID, string(ingest.StatusSkippedDupe))
		if found && existing.Status == ingest.StatusOK {
			return nil
		}
		return r.persistSkip(ctx, article, allowUpdate, ingest.StatusSkippedDupe,
			fmt.Sprintf("syndicated copy of %s", byPrint.CanonicalURL), logger)
	}

	if err := r.deps.Gate.Check(source, content); err != nil {
		reason, detail := ingest.ReasonExtractFailed, err.Error()
		if q, ok := ingest.AsQuality(err); ok {
			reason, detail = q.Reason, q.Detail
		}
		col.failure(reason, fmt.Sprintf("%s: %s", pageURL, detail))
		metrics.CountArticle(source.ID, string(ingest.StatusError))
		if found && existing.Status == ingest.StatusOK {
			// Never replace good content with a failed re-extraction.
			return nil
		}
		return r.persistSkip(ctx, article, allowUpdate, ingest.StatusError, detail, logger)
	}

	if article.ID == "" {
		id, err := r.deps.IDs.NewID()
		if err != nil {
			col.failure(ingest.ReasonExtractFailed, fmt.Sprintf("new article id: %v", err))
			return nil
		}
		article.ID = id
	}
	article.Status = ingest.StatusOK
	articleID = article.ID

	if r.deps.Blobs != nil && content.RawHTML != "" {
		path := fmt.Sprintf("raw/%s/%s.html", source.ID, articleID)
		uri, err := r.deps.Blobs.PutObject(ctx, path, "text/html; charset=utf-8", []byte(content.RawHTML))
		if err != nil {
			logger.Warn("raw html archive failed", zap.String("article_id", articleID), zap.Error(err))
		} else {
			article.RawHTMLURI = uri
		}
	}

	result, err := r.deps.Articles.Upsert(ctx, article, allowUpdate)
	if err != nil {
		return fmt.Errorf("%w: %v", ingest.ErrStoreUnavailable, err)
	}
	if result.Outcome == ingest.OutcomeDuplicate {
		// Lost the insert race to a concurrent worker.
		col.dupe()
		metrics.CountArticle(source.ID, string(ingest.StatusSkippedDupe))
		return nil
	}
	article.ID = result.ArticleID
	col.inserted()
	metrics.CountArticle(source.ID, string(ingest.StatusOK))

	resolution, err := r.deps.Resolver.Resolve(ctx, source, article)
	if err != nil {
		return fmt.Errorf("%w: %v", ingest.ErrStoreUnavailable, err)
	}
	if resolution.NERDegraded {
		col.degrade(ingest.ReasonNERUnavailable, fmt.Sprintf("person resolution skipped for article %s", article.ID))
	}
	for _, mention := range resolution.Mentions {
		if err := r.deps.Entities.UpsertMention(ctx, mention); err != nil {
			return fmt.Errorf("%w: %v", ingest.ErrStoreUnavailable, err)
		}
	}

	r.publish(ctx, ingest.ArticleIngested{
		ArticleID:       article.ID,
		SourceID:        article.SourceID,
		PublishedAt:     article.PublishedAt,
		Cities:          resolution.Cities,
		People:          resolution.Persons,
		PipelineVersion: r.cfg.Version,
	}, col, logger)
	return nil
}

// fetchCandidate picks static or rendered fetching for one candidate, and
// promotes an app-shell response to the browser within the render budget.
func (r *Runner) fetchCandidate(ctx context.Context, source ingest.Source, cand ingest.CandidateArticle, budget *strategy.Budget) (ingest.FetchAttempt, error) {
	if cand.NeedsHeadless {
		return r.renderWithin(ctx, source, cand.URL, budget)
	}
	attempt, err := r.deps.Fetcher.Get(ctx, source, cand.URL)
	if err != nil {
		return ingest.FetchAttempt{}, err
	}
	if attempt.NotModified {
		return attempt, nil
	}
	if attempt.StatusCode != http.StatusOK {
		return ingest.FetchAttempt{}, fmt.Errorf("unexpected status %d for %s", attempt.StatusCode, cand.URL)
	}
	if r.deps.Detector != nil && r.deps.Renderer != nil && r.deps.Detector.ShouldRender(attempt) {
		rendered, err := r.renderWithin(ctx, source, cand.URL, budget)
		if err != nil {
			return ingest.FetchAttempt{}, err
		}
		return rendered, nil
	}
	return attempt, nil
}

// renderWithin checks robots and the render budget, then holds the host's
// rate and concurrency slot while the browser navigates.
func (r *Runner) renderWithin(ctx context.Context, source ingest.Source, url string, budget *strategy.Budget) (ingest.FetchAttempt, error) {
	if r.deps.Renderer == nil {
		return ingest.FetchAttempt{}, fmt.Errorf("headless render required but no renderer configured")
	}
	if r.deps.Polite != nil && !r.deps.Polite.Permits(ctx, url) {
		metrics.CountFetch(source.ID, "robots_disallowed")
		return ingest.FetchAttempt{}, fmt.Errorf("%s: %w", url, ingest.ErrRobotsDisallowed)
	}
	if err := budget.Take(); err != nil {
		return ingest.FetchAttempt{}, err
	}
	if r.deps.Polite != nil {
		release, err := r.deps.Polite.Acquire(ctx, url)
		if err != nil {
			return ingest.FetchAttempt{}, err
		}
		defer release()
	}
	metrics.CountHeadlessRender(source.ID)
	return r.deps.Renderer.Render(ctx, url)
}

// persistSkip records a rejected or syndicated candidate so later runs can
// dedup it by canonical URL. Callers guard against overwriting an ok row.
func (r *Runner) persistSkip(ctx context.Context, article ingest.Article, allowUpdate bool, status ingest.ArticleStatus, detail string, logger *zap.Logger) error {
	if article.ID == "" {
		id, err := r.deps.IDs.NewID()
		if err != nil {
			logger.Warn("skip row id generation failed",
				zap.String("url", article.CanonicalURL), zap.Error(err))
			return nil
		}
		article.ID = id
	}
	article.Status = status
	article.ErrorDetail = detail
	if _, err := r.deps.Articles.Upsert(ctx, article, allowUpdate); err != nil {
		return fmt.Errorf("%w: %v", ingest.ErrStoreUnavailable, err)
	}
	return nil
}

// publish emits the event after the article is committed, retrying transient
// failures. Exhausting retries degrades the run but keeps the article.
func (r *Runner) publish(ctx context.Context, event ingest.ArticleIngested, col *collector, logger *zap.Logger) {
	attempts := r.cfg.PublishRetry
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			metrics.CountPublishRetry()
		}
		if _, err := r.deps.Publisher.Publish(ctx, event); err != nil {
			lastErr = err
			continue
		}
		return
	}
	logger.Warn("publish failed after retries",
		zap.String("article_id", event.ArticleID),
		zap.Error(lastErr))
	col.degrade(ingest.ReasonPublishFailed, fmt.Sprintf("article %s: %v", event.ArticleID, lastErr))
}
