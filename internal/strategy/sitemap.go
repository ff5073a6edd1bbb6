package strategy

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// SitemapStrategy discovers candidates from sitemap.xml. A sitemap index is
// followed one level deep, newest child sitemaps first, bounded by the
// source's page limit.
type SitemapStrategy struct {
	fetcher PageFetcher
}

func NewSitemapStrategy(fetcher PageFetcher) *SitemapStrategy {
	return &SitemapStrategy{fetcher: fetcher}
}

func (s *SitemapStrategy) Kind() ingest.StrategyKind { return ingest.StrategySitemap }

type sitemapURLSet struct {
	XMLName xml.Name          `xml:"urlset"`
	URLs    []sitemapURLEntry `xml:"url"`
}

type sitemapURLEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

type sitemapIndex struct {
	XMLName  xml.Name          `xml:"sitemapindex"`
	Sitemaps []sitemapURLEntry `xml:"sitemap"`
}

func (s *SitemapStrategy) Discover(ctx context.Context, source ingest.Source) ([]ingest.CandidateArticle, error) {
	sitemapURL := source.SitemapURL
	if sitemapURL == "" {
		sitemapURL = strings.TrimRight(source.BaseURL, "/") + "/sitemap.xml"
	}
	body, err := s.fetchBody(ctx, source, sitemapURL)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		return s.discoverFromIndex(ctx, source, index)
	}
	return s.parseURLSet(source, body)
}

func (s *SitemapStrategy) discoverFromIndex(ctx context.Context, source ingest.Source, index sitemapIndex) ([]ingest.CandidateArticle, error) {
	maxChildren := source.Pagination.MaxPages
	if maxChildren <= 0 {
		maxChildren = 1
	}
	// Index entries usually carry lastmod; newest children are the ones
	// holding recent articles.
	children := index.Sitemaps
	for i := 0; i < len(children); i++ {
		for j := i + 1; j < len(children); j++ {
			if children[j].LastMod > children[i].LastMod {
				children[i], children[j] = children[j], children[i]
			}
		}
	}
	if len(children) > maxChildren {
		children = children[:maxChildren]
	}

	var candidates []ingest.CandidateArticle
	for _, child := range children {
		loc := strings.TrimSpace(child.Loc)
		if loc == "" {
			continue
		}
		body, err := s.fetchBody(ctx, source, loc)
		if err != nil || body == nil {
			continue
		}
		found, err := s.parseURLSet(source, body)
		if err != nil {
			continue
		}
		candidates = append(candidates, found...)
	}
	return candidates, nil
}

func (s *SitemapStrategy) fetchBody(ctx context.Context, source ingest.Source, url string) ([]byte, error) {
	attempt, err := s.fetcher.Get(ctx, source, url)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	if attempt.NotModified {
		return nil, nil
	}
	return attempt.Body, nil
}

func (s *SitemapStrategy) parseURLSet(source ingest.Source, body []byte) ([]ingest.CandidateArticle, error) {
	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}
	candidates := make([]ingest.CandidateArticle, 0, len(set.URLs))
	for _, entry := range set.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		cand := ingest.CandidateArticle{URL: loc}
		if hint := parseLastMod(entry.LastMod); hint != nil {
			cand.PublishedHint = hint
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

func parseLastMod(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
