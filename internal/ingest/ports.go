package ingest

import (
	"context"
	"time"
)

// ArticleStore persists articles with upsert-with-uniqueness on
// (source_id, canonical_url). A conflicting insert is an expected race
// outcome and must be converted into a duplicate result, not an error.
type ArticleStore interface {
	Upsert(ctx context.Context, article Article, allowUpdate bool) (WriteResult, error)
	FindByCanonicalURL(ctx context.Context, sourceID, canonicalURL string) (Article, bool, error)
	FindByFingerprint(ctx context.Context, sourceID, fingerprint string) (Article, bool, error)
	Get(ctx context.Context, articleID string) (Article, error)
	ListBySource(ctx context.Context, sourceID string, from, to time.Time) ([]Article, error)
}

// EntityStore persists entities and mentions. Mentions are unique per
// (article, entity); a conflicting insert keeps the highest confidence.
type EntityStore interface {
	FindCityByCode(ctx context.Context, adminCode string) (Entity, bool, error)
	SeedCity(ctx context.Context, city Entity) (Entity, error)
	FindPersonByAlias(ctx context.Context, slug string) (Entity, bool, error)
	CreatePerson(ctx context.Context, person Entity) (Entity, error)
	UpsertMention(ctx context.Context, mention Mention) error
	ListMentions(ctx context.Context, articleID string) ([]Mention, error)
}

// JobStore records run lifecycles: one append-only row per run.
type JobStore interface {
	CreateRun(ctx context.Context, run JobRun) error
	FinalizeRun(ctx context.Context, run JobRun) error
}

// BlobStore archives raw markup and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes ArticleIngested events to the bus, at-least-once.
type Publisher interface {
	Publish(ctx context.Context, event ArticleIngested) (string, error)
}

// Renderer returns the final rendered markup for a URL via a headless
// browser. Budgeted by the pipeline, not by the renderer.
type Renderer interface {
	Render(ctx context.Context, url string) (FetchAttempt, error)
}

// HostPolicy gates every outbound request, rendered or static: robots
// permission first, then a per-host rate and concurrency slot. The release
// function returned by Acquire must be called exactly once.
type HostPolicy interface {
	Permits(ctx context.Context, url string) bool
	Acquire(ctx context.Context, url string) (func(), error)
}

// NERClient returns raw person-name candidates for normalized text.
type NERClient interface {
	Candidates(ctx context.Context, text string) ([]PersonCandidate, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs.
type IDGenerator interface {
	NewID() (string, error)
}
