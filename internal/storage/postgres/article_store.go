package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// ArticleStore persists articles. Uniqueness on (source_id, canonical_url)
// is enforced by the database; concurrent inserts of the same URL resolve to
// a duplicate result rather than an error.
type ArticleStore struct {
	pool dbConn
}

// NewArticleStore constructs a store from an existing pool.
func NewArticleStore(pool dbConn) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ArticleStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const articleColumns = `
	id, source_id, url, canonical_url, fingerprint, title, summary, body_text,
	raw_html_uri, published_at, scraped_at, language, lead_image, authors,
	tags, status, error_detail`

const upsertArticleUpdate = `
INSERT INTO articles (` + articleColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (source_id, canonical_url) DO UPDATE SET
	fingerprint = EXCLUDED.fingerprint,
	title = EXCLUDED.title,
	summary = EXCLUDED.summary,
	body_text = EXCLUDED.body_text,
	raw_html_uri = EXCLUDED.raw_html_uri,
	published_at = EXCLUDED.published_at,
	scraped_at = EXCLUDED.scraped_at,
	language = EXCLUDED.language,
	lead_image = EXCLUDED.lead_image,
	authors = EXCLUDED.authors,
	tags = EXCLUDED.tags,
	status = EXCLUDED.status,
	error_detail = EXCLUDED.error_detail
RETURNING id, (xmax = 0) AS inserted`

const upsertArticleNoUpdate = `
INSERT INTO articles (` + articleColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (source_id, canonical_url) DO NOTHING
RETURNING id`

// Upsert writes an article. With allowUpdate the conflicting row is
// overwritten in place and keeps its ID; without it the write reports a
// duplicate carrying the existing ID.
func (s *ArticleStore) Upsert(ctx context.Context, article ingest.Article, allowUpdate bool) (ingest.WriteResult, error) {
	if article.ID == "" {
		return ingest.WriteResult{}, fmt.Errorf("article id is required")
	}
	args := []any{
		article.ID,
		article.SourceID,
		article.URL,
		article.CanonicalURL,
		article.Fingerprint,
		article.Title,
		article.Summary,
		article.Text,
		article.RawHTMLURI,
		article.PublishedAt,
		article.ScrapedAt,
		article.Language,
		article.LeadImage,
		article.Authors,
		article.Tags,
		string(article.Status),
		article.ErrorDetail,
	}

	if allowUpdate {
		var (
			id       string
			inserted bool
		)
		if err := s.pool.QueryRow(ctx, upsertArticleUpdate, args...).Scan(&id, &inserted); err != nil {
			return ingest.WriteResult{}, fmt.Errorf("upsert article: %w", err)
		}
		outcome := ingest.OutcomeUpdated
		if inserted {
			outcome = ingest.OutcomeInserted
		}
		return ingest.WriteResult{Outcome: outcome, ArticleID: id}, nil
	}

	var id string
	err := s.pool.QueryRow(ctx, upsertArticleNoUpdate, args...).Scan(&id)
	switch {
	case err == nil:
		return ingest.WriteResult{Outcome: ingest.OutcomeInserted, ArticleID: id}, nil
	case errors.Is(err, pgx.ErrNoRows):
		// The conflict target already holds a row; surface its ID.
		existing, found, lookupErr := s.FindByCanonicalURL(ctx, article.SourceID, article.CanonicalURL)
		if lookupErr != nil {
			return ingest.WriteResult{}, lookupErr
		}
		if !found {
			return ingest.WriteResult{}, fmt.Errorf("conflicting article row disappeared for %s", article.CanonicalURL)
		}
		return ingest.WriteResult{Outcome: ingest.OutcomeDuplicate, ArticleID: existing.ID}, nil
	default:
		return ingest.WriteResult{}, fmt.Errorf("insert article: %w", err)
	}
}

const selectArticle = `SELECT ` + articleColumns + ` FROM articles`

// FindByCanonicalURL looks up an article by its dedup key.
func (s *ArticleStore) FindByCanonicalURL(ctx context.Context, sourceID, canonicalURL string) (ingest.Article, bool, error) {
	row := s.pool.QueryRow(ctx, selectArticle+` WHERE source_id = $1 AND canonical_url = $2`, sourceID, canonicalURL)
	return scanOptionalArticle(row)
}

// FindByFingerprint looks up an ingested article by content fingerprint.
// Skip and error rows are excluded so they never shadow the original.
func (s *ArticleStore) FindByFingerprint(ctx context.Context, sourceID, fingerprint string) (ingest.Article, bool, error) {
	row := s.pool.QueryRow(ctx, selectArticle+` WHERE source_id = $1 AND fingerprint = $2 AND status = 'ok' LIMIT 1`, sourceID, fingerprint)
	return scanOptionalArticle(row)
}

// Get fetches an article by ID.
func (s *ArticleStore) Get(ctx context.Context, articleID string) (ingest.Article, error) {
	row := s.pool.QueryRow(ctx, selectArticle+` WHERE id = $1`, articleID)
	article, found, err := scanOptionalArticle(row)
	if err != nil {
		return ingest.Article{}, err
	}
	if !found {
		return ingest.Article{}, fmt.Errorf("article %s not found", articleID)
	}
	return article, nil
}

// ListBySource returns articles for a source published within [from, to).
func (s *ArticleStore) ListBySource(ctx context.Context, sourceID string, from, to time.Time) ([]ingest.Article, error) {
	rows, err := s.pool.Query(ctx, selectArticle+`
 WHERE source_id = $1 AND published_at >= $2 AND published_at < $3
 ORDER BY published_at`, sourceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var out []ingest.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return out, nil
}

func scanOptionalArticle(row pgx.Row) (ingest.Article, bool, error) {
	article, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.Article{}, false, nil
	}
	if err != nil {
		return ingest.Article{}, false, err
	}
	return article, true, nil
}

func scanArticle(row pgx.Row) (ingest.Article, error) {
	var (
		article ingest.Article
		status  string
	)
	err := row.Scan(
		&article.ID,
		&article.SourceID,
		&article.URL,
		&article.CanonicalURL,
		&article.Fingerprint,
		&article.Title,
		&article.Summary,
		&article.Text,
		&article.RawHTMLURI,
		&article.PublishedAt,
		&article.ScrapedAt,
		&article.Language,
		&article.LeadImage,
		&article.Authors,
		&article.Tags,
		&status,
		&article.ErrorDetail,
	)
	if err != nil {
		return ingest.Article{}, err
	}
	article.Status = ingest.ArticleStatus(status)
	return article, nil
}
