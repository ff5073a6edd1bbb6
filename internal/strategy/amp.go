package strategy

import (
	"context"
	"strings"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// AMPStrategy discovers candidates through the listing pages but rewrites
// each link to its AMP variant. AMP pages ship server-rendered markup, which
// makes them a cheap escape hatch for sites whose canonical pages only fill
// in via JavaScript.
type AMPStrategy struct {
	listing *ListingStrategy
}

func NewAMPStrategy(fetcher PageFetcher) *AMPStrategy {
	return &AMPStrategy{listing: NewListingStrategy(fetcher)}
}

func (s *AMPStrategy) Kind() ingest.StrategyKind { return ingest.StrategyAMP }

func (s *AMPStrategy) Discover(ctx context.Context, source ingest.Source) ([]ingest.CandidateArticle, error) {
	candidates, err := s.listing.Discover(ctx, source)
	if err != nil {
		return nil, err
	}
	suffix := source.AMPSuffix
	if suffix == "" {
		suffix = "/amp"
	}
	for i := range candidates {
		candidates[i].URL = ampVariant(candidates[i].URL, suffix)
	}
	return candidates, nil
}

// ampVariant appends the AMP suffix to the URL path, keeping any query
// string intact.
func ampVariant(rawURL, suffix string) string {
	base := rawURL
	query := ""
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		base, query = rawURL[:i], rawURL[i:]
	}
	if strings.HasSuffix(base, suffix) {
		return rawURL
	}
	base = strings.TrimRight(base, "/")
	return base + suffix + query
}
