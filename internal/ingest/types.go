// Package ingest defines core types shared across the ingestion pipeline.
package ingest

import (
	"net/http"
	"time"
)

// StrategyKind identifies one method of discovering article URLs for a source.
type StrategyKind string

// Strategy kinds accepted in a source's priority list.
const (
	StrategyFeed     StrategyKind = "feed"
	StrategySitemap  StrategyKind = "sitemap"
	StrategyListing  StrategyKind = "listing"
	StrategyAMP      StrategyKind = "amp-fallback"
	StrategyHeadless StrategyKind = "headless"
)

// SelectorSet holds the CSS selectors used to pull structured fields out of a
// source's pages. Empty selectors fall back to readability extraction.
type SelectorSet struct {
	ListingItem   string `mapstructure:"listing_item" yaml:"listing_item"`
	ListingLink   string `mapstructure:"listing_link" yaml:"listing_link"`
	ListingTitle  string `mapstructure:"listing_title" yaml:"listing_title"`
	Title         string `mapstructure:"title" yaml:"title"`
	Summary       string `mapstructure:"summary" yaml:"summary"`
	Body          string `mapstructure:"body" yaml:"body"`
	PublishedDate string `mapstructure:"published_date" yaml:"published_date"`
	Authors       string `mapstructure:"authors" yaml:"authors"`
	LeadImage     string `mapstructure:"lead_image" yaml:"lead_image"`
}

// Pagination controls how a listing strategy walks beyond the first page.
type Pagination struct {
	MaxPages   int    `mapstructure:"max_pages" yaml:"max_pages"`
	NextParam  string `mapstructure:"next_param" yaml:"next_param"`
	NextSelect string `mapstructure:"next_selector" yaml:"next_selector"`
}

// Source is the configuration for one origin. It is read-only within a run.
type Source struct {
	ID               string         `mapstructure:"id" yaml:"id"`
	Name             string         `mapstructure:"name" yaml:"name"`
	BaseURL          string         `mapstructure:"base_url" yaml:"base_url"`
	FeedURL          string         `mapstructure:"feed_url" yaml:"feed_url"`
	SitemapURL       string         `mapstructure:"sitemap_url" yaml:"sitemap_url"`
	ListingURL       string         `mapstructure:"listing_url" yaml:"listing_url"`
	AMPSuffix        string         `mapstructure:"amp_suffix" yaml:"amp_suffix"`
	Timezone         string         `mapstructure:"timezone" yaml:"timezone"`
	Active           bool           `mapstructure:"active" yaml:"active"`
	Strategies       []StrategyKind `mapstructure:"strategies" yaml:"strategies"`
	Selectors        SelectorSet    `mapstructure:"selectors" yaml:"selectors"`
	Pagination       Pagination     `mapstructure:"pagination" yaml:"pagination"`
	DateLocale       string         `mapstructure:"date_locale" yaml:"date_locale"`
	CleanupSelectors []string       `mapstructure:"cleanup_selectors" yaml:"cleanup_selectors"`
	MinContentLen    int            `mapstructure:"min_content_length" yaml:"min_content_length"`
	HeadlessBudget   float64        `mapstructure:"headless_budget_fraction" yaml:"headless_budget_fraction"`
	AllowUpdates     bool           `mapstructure:"allow_updates" yaml:"allow_updates"`
	ExpectedLanguage string         `mapstructure:"expected_language" yaml:"expected_language"`
	DefaultRegion    string         `mapstructure:"default_region" yaml:"default_region"`
	DefaultTags      []string       `mapstructure:"default_tags" yaml:"default_tags"`
	FallbackTitle    string         `mapstructure:"fallback_title" yaml:"fallback_title"`
}

// FetchAttempt is the transient result of one HTTP (or headless) request.
// It is consumed immediately and never persisted.
type FetchAttempt struct {
	URL         string
	FinalURL    string
	StatusCode  int
	Header      http.Header
	Body        []byte
	NotModified bool
	Latency     time.Duration
	Rendered    bool
}

// CandidateArticle is a discovered URL plus minimal metadata before the
// content fetch.
type CandidateArticle struct {
	URL           string
	TitleHint     string
	SummaryHint   string
	PublishedHint *time.Time
	NeedsHeadless bool
}

// ArticleStatus is the persisted outcome for one canonical URL.
type ArticleStatus string

// Article status values.
const (
	StatusOK          ArticleStatus = "ok"
	StatusSkippedDupe ArticleStatus = "skipped_dupe"
	StatusError       ArticleStatus = "error"
)

// Article is the persisted unit. The pair (SourceID, CanonicalURL) is unique;
// an article is immutable once its status is ok unless the source allows
// content updates.
type Article struct {
	ID           string        `json:"id"`
	SourceID     string        `json:"source_id"`
	URL          string        `json:"url"`
	CanonicalURL string        `json:"canonical_url"`
	Fingerprint  string        `json:"fingerprint"`
	Title        string        `json:"title"`
	Summary      string        `json:"summary,omitempty"`
	Text         string        `json:"text"`
	RawHTMLURI   string        `json:"raw_html_uri,omitempty"`
	PublishedAt  time.Time     `json:"published_at"`
	ScrapedAt    time.Time     `json:"scraped_at"`
	Language     string        `json:"language"`
	LeadImage    string        `json:"lead_image,omitempty"`
	Authors      []string      `json:"authors,omitempty"`
	Tags         []string      `json:"tags,omitempty"`
	Status       ArticleStatus `json:"status"`
	ErrorDetail  string        `json:"error_detail,omitempty"`
}

// WriteOutcome describes how the store handled an article write.
type WriteOutcome string

// Write outcomes returned by ArticleStore.Upsert.
const (
	OutcomeInserted  WriteOutcome = "inserted"
	OutcomeUpdated   WriteOutcome = "updated"
	OutcomeDuplicate WriteOutcome = "duplicate"
)

// WriteResult is returned by article writes; Duplicate means the uniqueness
// constraint converted the write into a no-op.
type WriteResult struct {
	Outcome   WriteOutcome
	ArticleID string
}

// EntityType distinguishes cities from persons.
type EntityType string

// Entity types.
const (
	EntityCity   EntityType = "city"
	EntityPerson EntityType = "person"
)

// Entity is a city (keyed by administrative code) or a person (keyed by a
// normalized slug). Cities are pre-seeded from the gazetteer and never created
// by the pipeline.
type Entity struct {
	ID          string     `json:"id"`
	Type        EntityType `json:"type"`
	Key         string     `json:"key"`
	DisplayName string     `json:"display_name"`
	Region      string     `json:"region,omitempty"`
	Aliases     []string   `json:"aliases,omitempty"`
	Tracked     bool       `json:"tracked"`
}

// Disambiguation records which rule resolved a city mention.
type Disambiguation string

// Disambiguation outcomes for city mentions.
const (
	DisambiguationUnique        Disambiguation = "unique"
	DisambiguationRegionContext Disambiguation = "region_context"
	DisambiguationDefaultRegion Disambiguation = "default_region"
	DisambiguationAmbiguous     Disambiguation = "ambiguous"
)

// Mention relates one article to one entity. Unique per (article, entity);
// repeated matches collapse keeping the highest confidence observed.
type Mention struct {
	ArticleID      string         `json:"article_id"`
	EntityID       string         `json:"entity_id"`
	EntityType     EntityType     `json:"entity_type"`
	Matched        string         `json:"matched"`
	AdminCode      string         `json:"admin_code,omitempty"`
	Confidence     float64        `json:"confidence"`
	LowConfidence  bool           `json:"low_confidence,omitempty"`
	Disambiguation Disambiguation `json:"disambiguation,omitempty"`
}

// RunStatus is the lifecycle state of a job run.
type RunStatus string

// Run status values persisted in the job store.
const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
	RunDegraded  RunStatus = "degraded"
)

// RunStats counts per-run outcomes.
type RunStats struct {
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
	Dupes    int `json:"dupes"`
	Errors   int `json:"errors"`
}

// RunError is one recorded, non-fatal failure within a run.
type RunError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// JobRun is one execution of the pipeline against one source. Created at run
// start, finalized at run end, never mutated afterwards.
type JobRun struct {
	ID               string     `json:"id"`
	FlowName         string     `json:"flow_name"`
	SourceID         string     `json:"source_id"`
	GazetteerVersion string     `json:"gazetteer_version"`
	Status           RunStatus  `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	Stats            RunStats   `json:"stats"`
	Errors           []RunError `json:"errors,omitempty"`
}

// CityRef is a resolved city carried on the ArticleIngested event.
type CityRef struct {
	Name      string `json:"name"`
	Region    string `json:"region"`
	AdminCode string `json:"administrative_code"`
}

// PersonRef is a resolved person carried on the ArticleIngested event.
type PersonRef struct {
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	Confidence float64 `json:"confidence"`
}

// ArticleIngested is the pipeline's only external output besides persisted
// state. Logically idempotent on (ArticleID, PipelineVersion).
type ArticleIngested struct {
	ArticleID       string      `json:"article_id"`
	SourceID        string      `json:"source_id"`
	PublishedAt     time.Time   `json:"published_at"`
	Cities          []CityRef   `json:"cities"`
	People          []PersonRef `json:"people"`
	PipelineVersion string      `json:"pipeline_version"`
}

// ReprocessScope selects what a reprocess request covers.
type ReprocessScope string

// Reprocess scopes.
const (
	ReprocessArticle ReprocessScope = "article"
	ReprocessSource  ReprocessScope = "source"
)

// ReprocessRequest triggers a re-run scoped to one article or one
// source+date range. Consumed, never produced, by this pipeline.
type ReprocessRequest struct {
	Scope     ReprocessScope `json:"scope"`
	ArticleID string         `json:"article_id,omitempty"`
	SourceID  string         `json:"source_id,omitempty"`
	From      *time.Time     `json:"from,omitempty"`
	To        *time.Time     `json:"to,omitempty"`
	Reason    string         `json:"reason"`
	Requester string         `json:"requester"`
}

// PersonCandidate is one raw span proposed by the external NER capability.
// The list is untrusted input; the resolver validates and normalizes it.
type PersonCandidate struct {
	Span       string  `json:"span"`
	Confidence float64 `json:"confidence"`
}
