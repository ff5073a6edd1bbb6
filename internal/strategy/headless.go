package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// HeadlessStrategy renders the listing page in a browser before scraping it
// with the usual selectors. Last in every priority list; it only runs when
// the static strategies came up empty. The render goes through the same host
// policy as a static fetch.
type HeadlessStrategy struct {
	renderer ingest.Renderer
	polite   ingest.HostPolicy
}

func NewHeadlessStrategy(renderer ingest.Renderer, polite ingest.HostPolicy) *HeadlessStrategy {
	return &HeadlessStrategy{renderer: renderer, polite: polite}
}

func (s *HeadlessStrategy) Kind() ingest.StrategyKind { return ingest.StrategyHeadless }

func (s *HeadlessStrategy) Discover(ctx context.Context, source ingest.Source) ([]ingest.CandidateArticle, error) {
	start := source.ListingURL
	if start == "" {
		start = source.BaseURL
	}
	if s.polite != nil {
		if !s.polite.Permits(ctx, start) {
			return nil, fmt.Errorf("%s: %w", start, ingest.ErrRobotsDisallowed)
		}
		release, err := s.polite.Acquire(ctx, start)
		if err != nil {
			return nil, fmt.Errorf("acquire host slot: %w", err)
		}
		defer release()
	}
	attempt, err := s.renderer.Render(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("render listing: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(attempt.Body)))
	if err != nil {
		return nil, fmt.Errorf("parse rendered listing: %w", err)
	}
	candidates := parseListing(doc, source, attempt.FinalURL)
	// A site whose listing needs a browser almost always needs one for the
	// article pages too.
	for i := range candidates {
		candidates[i].NeedsHeadless = true
	}
	return candidates, nil
}
