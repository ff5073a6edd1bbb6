// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farol",
		Name:      "pages_fetched_total",
		Help:      "Pages fetched, by source and outcome.",
	}, []string{"source", "outcome"})

	articlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farol",
		Name:      "articles_total",
		Help:      "Articles processed, by source and status.",
	}, []string{"source", "status"})

	headlessRendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farol",
		Name:      "headless_renders_total",
		Help:      "Headless renders performed, by source.",
	}, []string{"source"})

	mentionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farol",
		Name:      "mentions_resolved_total",
		Help:      "Entity mentions resolved, by type.",
	}, []string{"type"})

	rateLimitDelaySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "farol",
		Name:      "rate_limit_delay_seconds",
		Help:      "Delay introduced by the per-host rate limiter.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"host"})

	publishRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "farol",
		Name:      "publish_retries_total",
		Help:      "Event publish attempts beyond the first.",
	})
)

// CountFetch records one page fetch outcome (ok, not_modified, error).
func CountFetch(source, outcome string) {
	pagesFetchedTotal.WithLabelValues(source, outcome).Inc()
}

// CountArticle records one processed article by final status.
func CountArticle(source, status string) {
	articlesTotal.WithLabelValues(source, status).Inc()
}

// CountHeadlessRender records one headless render.
func CountHeadlessRender(source string) {
	headlessRendersTotal.WithLabelValues(source).Inc()
}

// CountMention records one resolved mention by entity type.
func CountMention(entityType string) {
	mentionsTotal.WithLabelValues(entityType).Inc()
}

// ObserveRateLimitDelay records time spent waiting on a host's token bucket.
func ObserveRateLimitDelay(host string, d time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}

// CountPublishRetry records one publish retry.
func CountPublishRetry() {
	publishRetriesTotal.Inc()
}

// Serve exposes /metrics on the given port. Blocks; intended for a goroutine.
func Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
