package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

func newReprocessCmd() *cobra.Command {
	var (
		articleID string
		sourceID  string
		fromStr   string
		toStr     string
		reason    string
		requester string
	)

	cmd := &cobra.Command{
		Use:   "reprocess",
		Short: "Re-resolve entities for stored articles and re-emit their events.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := buildReprocessRequest(articleID, sourceID, fromStr, toStr, reason, requester)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Runner.Reprocess(ctx, req, a.Sources)
		},
	}
	cmd.Flags().StringVar(&articleID, "article", "", "reprocess a single article by ID")
	cmd.Flags().StringVar(&sourceID, "source", "", "reprocess a source's articles")
	cmd.Flags().StringVar(&fromStr, "from", "", "start of the published-at range (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "end of the published-at range (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the reprocess is needed (required)")
	cmd.Flags().StringVar(&requester, "requester", "", "who asked for the reprocess (required)")
	_ = cmd.MarkFlagRequired("reason")
	_ = cmd.MarkFlagRequired("requester")
	return cmd
}

func buildReprocessRequest(articleID, sourceID, fromStr, toStr, reason, requester string) (ingest.ReprocessRequest, error) {
	req := ingest.ReprocessRequest{Reason: reason, Requester: requester}
	switch {
	case articleID != "" && sourceID != "":
		return req, fmt.Errorf("--article and --source are mutually exclusive")
	case articleID != "":
		req.Scope = ingest.ReprocessArticle
		req.ArticleID = articleID
	case sourceID != "":
		req.Scope = ingest.ReprocessSource
		req.SourceID = sourceID
	default:
		return req, fmt.Errorf("one of --article or --source is required")
	}

	if fromStr != "" {
		t, err := parseFlagTime(fromStr)
		if err != nil {
			return req, fmt.Errorf("parse --from: %w", err)
		}
		req.From = &t
	}
	if toStr != "" {
		t, err := parseFlagTime(toStr)
		if err != nil {
			return req, fmt.Errorf("parse --to: %w", err)
		}
		req.To = &t
	}
	return req, nil
}

func parseFlagTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}
