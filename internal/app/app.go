// Package app initializes and holds long-lived services, acting as the
// dependency injection container for the pipeline.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/farolnews/farol-ingest/internal/canonical"
	systemclock "github.com/farolnews/farol-ingest/internal/clock/system"
	"github.com/farolnews/farol-ingest/internal/config"
	"github.com/farolnews/farol-ingest/internal/extract"
	"github.com/farolnews/farol-ingest/internal/fetch"
	"github.com/farolnews/farol-ingest/internal/gazetteer"
	"github.com/farolnews/farol-ingest/internal/id/uuid"
	"github.com/farolnews/farol-ingest/internal/ingest"
	"github.com/farolnews/farol-ingest/internal/metrics"
	"github.com/farolnews/farol-ingest/internal/ner"
	"github.com/farolnews/farol-ingest/internal/politeness"
	memorypublisher "github.com/farolnews/farol-ingest/internal/publisher/memory"
	pubpublisher "github.com/farolnews/farol-ingest/internal/publisher/pubsub"
	"github.com/farolnews/farol-ingest/internal/quality"
	"github.com/farolnews/farol-ingest/internal/render"
	"github.com/farolnews/farol-ingest/internal/resolve"
	"github.com/farolnews/farol-ingest/internal/runner"
	"github.com/farolnews/farol-ingest/internal/storage/gcs"
	"github.com/farolnews/farol-ingest/internal/storage/local"
	"github.com/farolnews/farol-ingest/internal/storage/memory"
	"github.com/farolnews/farol-ingest/internal/storage/postgres"
	"github.com/farolnews/farol-ingest/internal/strategy"
)

// App wires configuration into a ready-to-run pipeline. It is initialized
// once at startup and fails fast when a critical service cannot connect.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Runner  *runner.Runner
	Sources []ingest.Source

	closers []func()
}

// New builds the application from loaded configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	sources, err := config.LoadSources(cfg.Sources.Path)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	a.Sources = sources

	gaz, err := gazetteer.Load(cfg.Gazetteer.Path)
	if err != nil {
		return nil, fmt.Errorf("load gazetteer: %w", err)
	}
	logger.Info("gazetteer loaded",
		zap.String("version", gaz.Version()),
		zap.Int("cities", len(gaz.Cities())))

	articles, entities, jobs, err := a.buildStores(ctx)
	if err != nil {
		return nil, err
	}
	blobs, err := a.buildBlobStore(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}

	polite := politeness.New(politeness.Config{
		UserAgent:       cfg.Politeness.UserAgent,
		DefaultRPS:      cfg.Politeness.DefaultRPS,
		Burst:           cfg.Politeness.Burst,
		RobotsTTL:       time.Duration(cfg.Politeness.RobotsTTLMin) * time.Minute,
		RespectRobots:   cfg.Politeness.RespectRobots,
		PerHostParallel: cfg.Politeness.PerHostParallel,
	}, logger)
	retry := politeness.NewRetryPolicy(
		cfg.Politeness.MaxAttempts,
		time.Duration(cfg.Politeness.BackoffBaseMs)*time.Millisecond,
		time.Duration(cfg.Politeness.BackoffMaxMs)*time.Millisecond,
	)
	fetcher := fetch.New(fetch.Config{
		UserAgent:    cfg.Politeness.UserAgent,
		Timeout:      time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}, polite, retry, logger)

	var renderer ingest.Renderer
	var detector *render.Detector
	if cfg.Headless.Enabled {
		browser, err := render.NewBrowser(render.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Politeness.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("init headless browser: %w", err)
		}
		a.closers = append(a.closers, browser.Close)
		renderer = browser
		detector = render.NewDetector(0)
	} else {
		renderer = render.NewNoop()
	}

	ids := uuid.New()
	clock := systemclock.New()

	nerClient := ner.New(cfg.NER.Endpoint, time.Duration(cfg.NER.TimeoutSeconds)*time.Second)
	resolver := resolve.New(gaz, entities, nerClient, ids, cfg.NER.ConfidenceFloor, logger)

	orchestrator := strategy.NewOrchestrator(logger,
		strategy.NewFeedStrategy(fetcher),
		strategy.NewSitemapStrategy(fetcher),
		strategy.NewListingStrategy(fetcher),
		strategy.NewAMPStrategy(fetcher),
		strategy.NewHeadlessStrategy(renderer, polite),
	)

	a.Runner = runner.New(cfg.Pipeline, gaz.Version(), runner.Deps{
		Fetcher:   fetcher,
		Discovery: orchestrator,
		Renderer:  renderer,
		Polite:    polite,
		Detector:  detector,
		Extractor: extract.New(clock, logger),
		Canon:     canonical.New(nil),
		Gate:      quality.NewGate(),
		Resolver:  resolver,
		Articles:  articles,
		Entities:  entities,
		Jobs:      jobs,
		Blobs:     blobs,
		Publisher: publisher,
		Clock:     clock,
		IDs:       ids,
		Logger:    logger,
	})

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Port); err != nil {
				logger.Error("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	return a, nil
}

func (a *App) buildStores(ctx context.Context) (ingest.ArticleStore, ingest.EntityStore, ingest.JobStore, error) {
	switch a.Config.DB.Provider {
	case "postgres":
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:      a.Config.DB.DSN,
			MaxConns: a.Config.DB.MaxConns,
			MinConns: a.Config.DB.MinConns,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		articles, err := postgres.NewArticleStore(pool)
		if err != nil {
			return nil, nil, nil, err
		}
		entities, err := postgres.NewEntityStore(pool)
		if err != nil {
			return nil, nil, nil, err
		}
		jobs, err := postgres.NewJobStore(pool)
		if err != nil {
			return nil, nil, nil, err
		}
		a.Logger.Info("using postgres stores")
		return articles, entities, jobs, nil
	case "memory":
		a.Logger.Info("using in-memory stores; data is discarded at exit")
		return memory.NewArticleStore(), memory.NewEntityStore(), memory.NewJobStore(), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown db provider: %s", a.Config.DB.Provider)
	}
}

func (a *App) buildBlobStore(ctx context.Context) (ingest.BlobStore, error) {
	if !a.Config.Pipeline.ArchiveHTML {
		return nil, nil
	}
	switch a.Config.Blob.Provider {
	case "noop":
		return nil, nil
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return gcs.New(client, gcs.Config{Bucket: a.Config.Blob.GCSBucket})
	case "local":
		return local.New(local.Config{BaseDir: a.Config.Blob.LocalDir})
	case "memory":
		return memory.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob provider: %s", a.Config.Blob.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context) (ingest.Publisher, error) {
	switch a.Config.PubSub.Provider {
	case "pubsub":
		if a.Config.PubSub.ProjectID == "" || a.Config.PubSub.TopicName == "" {
			return nil, fmt.Errorf("pubsub provider requires project_id and topic_name")
		}
		client, err := pubsub.NewClient(ctx, a.Config.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		topic := client.Topic(a.Config.PubSub.TopicName)
		pub := pubpublisher.New(topic)
		a.closers = append(a.closers, pub.Stop)
		a.Logger.Info("publishing to pub/sub", zap.String("topic", a.Config.PubSub.TopicName))
		return pub, nil
	case "memory":
		a.Logger.Info("using in-memory publisher; events are discarded at exit")
		return memorypublisher.New(), nil
	default:
		return nil, fmt.Errorf("unknown pubsub provider: %s", a.Config.PubSub.Provider)
	}
}

// Close tears down connections in reverse initialization order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
