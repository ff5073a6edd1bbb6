package strategy

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// FeedStrategy discovers candidates from an RSS or Atom feed. It is the
// cheapest and most reliable method, so sources that expose a feed list it
// first.
type FeedStrategy struct {
	fetcher PageFetcher
	parser  *gofeed.Parser
}

func NewFeedStrategy(fetcher PageFetcher) *FeedStrategy {
	return &FeedStrategy{fetcher: fetcher, parser: gofeed.NewParser()}
}

func (s *FeedStrategy) Kind() ingest.StrategyKind { return ingest.StrategyFeed }

func (s *FeedStrategy) Discover(ctx context.Context, source ingest.Source) ([]ingest.CandidateArticle, error) {
	feedURL := source.FeedURL
	if feedURL == "" {
		feedURL = strings.TrimRight(source.BaseURL, "/") + "/feed"
	}
	attempt, err := s.fetcher.Get(ctx, source, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	if attempt.NotModified {
		return nil, nil
	}
	feed, err := s.parser.ParseString(string(attempt.Body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	base, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	candidates := make([]ingest.CandidateArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		ref, err := url.Parse(link)
		if err != nil {
			continue
		}
		cand := ingest.CandidateArticle{
			URL:         base.ResolveReference(ref).String(),
			TitleHint:   strings.TrimSpace(item.Title),
			SummaryHint: strings.TrimSpace(item.Description),
		}
		if item.PublishedParsed != nil {
			t := item.PublishedParsed.UTC()
			cand.PublishedHint = &t
		} else if item.UpdatedParsed != nil {
			t := item.UpdatedParsed.UTC()
			cand.PublishedHint = &t
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}
