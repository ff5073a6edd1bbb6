// Package extract turns raw page markup into structured article content.
// Selector-based extraction per source comes first; a readability pass covers
// sources without curated selectors or pages where the selectors find nothing.
package extract

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// Content is the structured result of one extraction.
type Content struct {
	Title       string
	Summary     string
	Text        string
	RawHTML     string
	PublishedAt *time.Time
	LeadImage   string
	Authors     []string
}

// minSelectorText is the point below which selector output is considered
// negligible and readability takes over.
const minSelectorText = 80

// Extractor extracts article content using a source's selector set. The
// clock anchors relative date words like "ontem"; a nil clock falls back to
// the wall clock.
type Extractor struct {
	clock  ingest.Clock
	logger *zap.Logger
}

// New builds an Extractor.
func New(clock ingest.Clock, logger *zap.Logger) *Extractor {
	return &Extractor{clock: clock, logger: logger}
}

// Extract parses the page and pulls out title, body text, summary, published
// time, lead image, and authors. The published time is derived from
// structured metadata first, then the source's visible date selector; it is
// never defaulted to the current time.
func (e *Extractor) Extract(source ingest.Source, pageURL, html string) (Content, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Content{}, fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()
	for _, sel := range source.CleanupSelectors {
		doc.Find(sel).Remove()
	}

	content := Content{RawHTML: html}
	content.Title = e.title(source, doc)
	content.Text = e.bodyText(source, doc)
	content.Summary = e.summary(source, doc)
	content.LeadImage = e.leadImage(source, doc)
	content.Authors = e.authors(source, doc)
	content.PublishedAt = e.publishedAt(source, doc)

	if len(content.Text) < minSelectorText {
		e.applyReadability(pageURL, html, &content)
	}
	if content.Title == "" {
		content.Title = source.FallbackTitle
	}
	content.Text = CleanText(content.Text)
	content.Summary = CleanText(content.Summary)
	return content, nil
}

func (e *Extractor) title(source ingest.Source, doc *goquery.Document) string {
	if source.Selectors.Title != "" {
		if t := strings.TrimSpace(doc.Find(source.Selectors.Title).First().Text()); t != "" {
			return t
		}
	}
	if t, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		return strings.TrimSpace(t)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func (e *Extractor) bodyText(source ingest.Source, doc *goquery.Document) string {
	if source.Selectors.Body == "" {
		return ""
	}
	var parts []string
	doc.Find(source.Selectors.Body).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}

func (e *Extractor) summary(source ingest.Source, doc *goquery.Document) string {
	if source.Selectors.Summary != "" {
		if s := strings.TrimSpace(doc.Find(source.Selectors.Summary).First().Text()); s != "" {
			return s
		}
	}
	if s, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		return strings.TrimSpace(s)
	}
	if s, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func (e *Extractor) leadImage(source ingest.Source, doc *goquery.Document) string {
	if source.Selectors.LeadImage != "" {
		if src, ok := doc.Find(source.Selectors.LeadImage).First().Attr("src"); ok {
			return strings.TrimSpace(src)
		}
	}
	if src, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		return strings.TrimSpace(src)
	}
	return ""
}

func (e *Extractor) authors(source ingest.Source, doc *goquery.Document) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	if source.Selectors.Authors != "" {
		doc.Find(source.Selectors.Authors).Each(func(_ int, s *goquery.Selection) {
			add(s.Text())
		})
	}
	if len(out) == 0 {
		if a, ok := doc.Find(`meta[name="author"]`).First().Attr("content"); ok {
			add(a)
		}
	}
	return out
}

// publishedAt walks the fallback chain: structured published_time meta, then
// the source's visible date selector. Returns nil when neither yields a
// parseable timestamp.
func (e *Extractor) publishedAt(source ingest.Source, doc *goquery.Document) *time.Time {
	loc := sourceLocation(source)
	now := time.Now()
	if e.clock != nil {
		now = e.clock.Now()
	}
	for _, metaSel := range []string{
		`meta[property="article:published_time"]`,
		`meta[name="article:published_time"]`,
		`meta[itemprop="datePublished"]`,
	} {
		if v, ok := doc.Find(metaSel).First().Attr("content"); ok {
			if ts, parsed := ParseDate(v, loc, now); parsed {
				return &ts
			}
		}
	}
	if v, ok := doc.Find(`time[datetime]`).First().Attr("datetime"); ok {
		if ts, parsed := ParseDate(v, loc, now); parsed {
			return &ts
		}
	}
	if source.Selectors.PublishedDate != "" {
		raw := strings.TrimSpace(doc.Find(source.Selectors.PublishedDate).First().Text())
		if ts, parsed := ParseDate(raw, loc, now); parsed {
			return &ts
		}
	}
	return nil
}

func (e *Extractor) applyReadability(pageURL, html string, content *Content) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		e.logger.Debug("readability fallback failed", zap.String("url", pageURL), zap.Error(err))
		return
	}
	if t := strings.TrimSpace(article.TextContent); t != "" {
		content.Text = t
	}
	if content.Title == "" {
		content.Title = strings.TrimSpace(article.Title)
	}
	if content.Summary == "" {
		content.Summary = strings.TrimSpace(article.Excerpt)
	}
	if content.LeadImage == "" {
		content.LeadImage = strings.TrimSpace(article.Image)
	}
	if len(content.Authors) == 0 && strings.TrimSpace(article.Byline) != "" {
		content.Authors = []string{strings.TrimSpace(article.Byline)}
	}
}

func sourceLocation(source ingest.Source) *time.Location {
	if source.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(source.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
