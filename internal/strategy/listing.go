package strategy

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// ListingStrategy scrapes section or homepage listings with the source's
// CSS selectors, following pagination up to the configured page limit.
type ListingStrategy struct {
	fetcher PageFetcher
}

func NewListingStrategy(fetcher PageFetcher) *ListingStrategy {
	return &ListingStrategy{fetcher: fetcher}
}

func (s *ListingStrategy) Kind() ingest.StrategyKind { return ingest.StrategyListing }

func (s *ListingStrategy) Discover(ctx context.Context, source ingest.Source) ([]ingest.CandidateArticle, error) {
	start := source.ListingURL
	if start == "" {
		start = source.BaseURL
	}
	maxPages := source.Pagination.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	var candidates []ingest.CandidateArticle
	seen := make(map[string]bool)
	pageURL := start
	for page := 1; page <= maxPages && pageURL != ""; page++ {
		attempt, err := s.fetcher.Get(ctx, source, pageURL)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("fetch listing: %w", err)
			}
			break
		}
		if attempt.NotModified {
			break
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(attempt.Body))
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("parse listing: %w", err)
			}
			break
		}
		found := parseListing(doc, source, attempt.FinalURL)
		added := 0
		for _, cand := range found {
			if seen[cand.URL] {
				continue
			}
			seen[cand.URL] = true
			candidates = append(candidates, cand)
			added++
		}
		if added == 0 {
			break
		}
		pageURL = nextPageURL(doc, source, pageURL, page+1)
	}
	return candidates, nil
}

// parseListing extracts candidate links from a listing document. Shared by
// the listing, amp-fallback and headless strategies.
func parseListing(doc *goquery.Document, source ingest.Source, pageURL string) []ingest.CandidateArticle {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	var candidates []ingest.CandidateArticle
	doc.Find(source.Selectors.ListingItem).Each(func(_ int, item *goquery.Selection) {
		link := item
		if source.Selectors.ListingLink != "" {
			link = item.Find(source.Selectors.ListingLink).First()
		}
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			// Items wrapping their anchor rather than being one.
			if nested := item.Find("a[href]").First(); nested.Length() > 0 {
				href, _ = nested.Attr("href")
			}
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		title := ""
		if source.Selectors.ListingTitle != "" {
			title = strings.TrimSpace(item.Find(source.Selectors.ListingTitle).First().Text())
		}
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}
		candidates = append(candidates, ingest.CandidateArticle{
			URL:       abs.String(),
			TitleHint: title,
		})
	})
	return candidates
}

// nextPageURL resolves the following listing page, preferring an explicit
// next-link selector over query-parameter pagination.
func nextPageURL(doc *goquery.Document, source ingest.Source, current string, nextPage int) string {
	base, err := url.Parse(current)
	if err != nil {
		return ""
	}
	if sel := source.Pagination.NextSelect; sel != "" {
		href, ok := doc.Find(sel).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return ""
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return ""
		}
		return base.ResolveReference(ref).String()
	}
	if param := source.Pagination.NextParam; param != "" {
		q := base.Query()
		q.Set(param, strconv.Itoa(nextPage))
		base.RawQuery = q.Encode()
		return base.String()
	}
	return ""
}
