// Package cmd wires the CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/farolnews/farol-ingest/internal/app"
	"github.com/farolnews/farol-ingest/internal/config"
	"github.com/farolnews/farol-ingest/internal/logging"
)

var cfgFile string

// newApp is the application factory, replaceable in tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "farol",
		Short: "Regional news ingestion and entity resolution pipeline.",
		Long: `farol crawls configured regional news sources, extracts and
deduplicates articles, resolves city and person mentions, and publishes
ArticleIngested events for downstream consumers.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newReprocessCmd())
	return cmd
}

// setup loads configuration, builds the logger and the app container.
func setup(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return newApp(ctx, cfg, logger)
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Execute runs the CLI.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
