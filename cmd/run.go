package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

func newRunCmd() *cobra.Command {
	var sourceIDs []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run ingestion for every active source, or for --source only.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sources := selectSources(a.Sources, sourceIDs)
			if len(sources) == 0 {
				return fmt.Errorf("no active sources selected")
			}

			var failed int
			for _, source := range sources {
				if ctx.Err() != nil {
					break
				}
				runCtx := ctx
				var cancel context.CancelFunc
				if timeout := a.Config.Pipeline.RunTimeoutS; timeout > 0 {
					runCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
				}
				run, err := a.Runner.Run(runCtx, source)
				if cancel != nil {
					cancel()
				}
				if err != nil {
					a.Logger.Error("run aborted", zap.String("source", source.ID), zap.Error(err))
					failed++
					continue
				}
				if run.Status == ingest.RunFailed {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(sources))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&sourceIDs, "source", nil, "limit the run to these source IDs")
	return cmd
}

func selectSources(all []ingest.Source, ids []string) []ingest.Source {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []ingest.Source
	for _, source := range all {
		if !source.Active {
			continue
		}
		if len(wanted) > 0 && !wanted[source.ID] {
			continue
		}
		out = append(out, source)
	}
	return out
}
