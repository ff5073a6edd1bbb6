// Package fetch executes single-page HTTP requests through the politeness
// controller, with conditional request reuse and jittered retries.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/farolnews/farol-ingest/internal/ingest"
	"github.com/farolnews/farol-ingest/internal/metrics"
	"github.com/farolnews/farol-ingest/internal/politeness"
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Fetcher retrieves pages with Colly. Robots checks and pacing live in the
// politeness controller, so the collector's own robots handling stays off.
type Fetcher struct {
	cfg           Config
	polite        *politeness.Controller
	retry         *politeness.RetryPolicy
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, polite *politeness.Controller, retry *politeness.RetryPolicy, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	// Revisits are the normal case here: every run refetches known URLs and
	// dedups downstream via validators and fingerprints. The visit log is
	// shared across clones, so this must be set on the base collector.
	c.AllowURLRevisit = true
	if cfg.MaxBodyBytes > 0 {
		c.MaxBodySize = cfg.MaxBodyBytes
	}
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		polite:        polite,
		retry:         retry,
		baseCollector: c,
		logger:        logger,
	}
}

// Get fetches one URL for a source. It consults robots, waits for the host's
// rate budget, reuses stored validators, and retries transient failures with
// backoff. A 304 response returns an attempt with NotModified set and no body.
func (f *Fetcher) Get(ctx context.Context, source ingest.Source, rawURL string) (ingest.FetchAttempt, error) {
	if !f.polite.Permits(ctx, rawURL) {
		metrics.CountFetch(source.ID, "robots_disallowed")
		return ingest.FetchAttempt{}, fmt.Errorf("%s: %w", rawURL, ingest.ErrRobotsDisallowed)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		attemptResult, err := f.doOnce(ctx, source, rawURL)
		if err == nil {
			if attemptResult.StatusCode >= 500 && f.retry.ShouldRetry(nil, attemptResult.StatusCode, attempt) {
				lastErr = fmt.Errorf("server error %d for %s", attemptResult.StatusCode, rawURL)
				f.pause(ctx, attempt)
				continue
			}
			f.record(source, rawURL, attemptResult)
			return attemptResult, nil
		}

		lastErr = err
		if !f.retry.ShouldRetry(err, 0, attempt) {
			break
		}
		f.logger.Debug("transient fetch failure; retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Error(err))
		f.pause(ctx, attempt)
		if ctx.Err() != nil {
			break
		}
	}
	metrics.CountFetch(source.ID, "error")
	return ingest.FetchAttempt{}, fmt.Errorf("fetch %s: %w", rawURL, lastErr)
}

func (f *Fetcher) record(source ingest.Source, rawURL string, attempt ingest.FetchAttempt) {
	f.polite.RecordResponse(source.ID, rawURL, attempt.Header)
	if attempt.NotModified {
		metrics.CountFetch(source.ID, "not_modified")
		return
	}
	metrics.CountFetch(source.ID, "ok")
}

func (f *Fetcher) pause(ctx context.Context, attempt int) {
	delay := f.retry.Backoff(attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (f *Fetcher) doOnce(ctx context.Context, source ingest.Source, rawURL string) (ingest.FetchAttempt, error) {
	release, err := f.polite.Acquire(ctx, rawURL)
	if err != nil {
		return ingest.FetchAttempt{}, err
	}
	defer release()

	var (
		result   ingest.FetchAttempt
		fetchErr error
	)
	start := time.Now()
	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	conditional := f.polite.ConditionalHeaders(source.ID, rawURL)
	collector.OnRequest(func(r *colly.Request) {
		for key, values := range conditional {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = ingest.FetchAttempt{
			URL:         rawURL,
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			Header:      r.Headers.Clone(),
			Body:        append([]byte(nil), r.Body...),
			NotModified: r.StatusCode == http.StatusNotModified,
			Latency:     time.Since(start),
		}
		if result.NotModified {
			result.Body = nil
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode == http.StatusNotModified {
			result = ingest.FetchAttempt{
				URL:         rawURL,
				FinalURL:    rawURL,
				StatusCode:  r.StatusCode,
				NotModified: true,
				Latency:     time.Since(start),
			}
			if r.Headers != nil {
				result.Header = r.Headers.Clone()
			}
			return
		}
		fetchErr = err
	})

	if err := f.runCollector(ctx, collector, rawURL); err != nil {
		return ingest.FetchAttempt{}, err
	}
	if fetchErr != nil {
		return ingest.FetchAttempt{}, fetchErr
	}
	if result.Header == nil {
		result.Header = http.Header{}
	}
	return result, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
