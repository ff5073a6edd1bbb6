// Package memory provides in-memory persistence for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// ArticleStore keeps articles in maps keyed the way the Postgres schema is
// indexed, so callers observe the same uniqueness behavior.
type ArticleStore struct {
	mu          sync.RWMutex
	byID        map[string]ingest.Article
	byCanonical map[string]string
	byPrint     map[string]string
}

// NewArticleStore constructs an ArticleStore.
func NewArticleStore() *ArticleStore {
	return &ArticleStore{
		byID:        make(map[string]ingest.Article),
		byCanonical: make(map[string]string),
		byPrint:     make(map[string]string),
	}
}

func canonicalKey(sourceID, canonicalURL string) string {
	return sourceID + "\x00" + canonicalURL
}

// Upsert inserts the article, or resolves the conflict on
// (source, canonical URL) the same way the database does: update when
// allowed, otherwise report a duplicate.
func (s *ArticleStore) Upsert(_ context.Context, article ingest.Article, allowUpdate bool) (ingest.WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := canonicalKey(article.SourceID, article.CanonicalURL)
	if existingID, ok := s.byCanonical[key]; ok {
		existing := s.byID[existingID]
		if !allowUpdate {
			return ingest.WriteResult{Outcome: ingest.OutcomeDuplicate, ArticleID: existingID}, nil
		}
		delete(s.byPrint, printKey(existing.SourceID, existing.Fingerprint))
		updated := article
		updated.ID = existingID
		s.byID[existingID] = updated
		s.indexFingerprint(updated)
		return ingest.WriteResult{Outcome: ingest.OutcomeUpdated, ArticleID: existingID}, nil
	}

	s.byID[article.ID] = article
	s.byCanonical[key] = article.ID
	s.indexFingerprint(article)
	return ingest.WriteResult{Outcome: ingest.OutcomeInserted, ArticleID: article.ID}, nil
}

// indexFingerprint registers the dedup key for ingested content only; skip
// and error rows must not shadow the article they duplicate.
func (s *ArticleStore) indexFingerprint(article ingest.Article) {
	if article.Status != ingest.StatusOK {
		return
	}
	s.byPrint[printKey(article.SourceID, article.Fingerprint)] = article.ID
}

func printKey(sourceID, fingerprint string) string {
	return sourceID + "\x00" + fingerprint
}

// FindByCanonicalURL looks up an article by its dedup key.
func (s *ArticleStore) FindByCanonicalURL(_ context.Context, sourceID, canonicalURL string) (ingest.Article, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCanonical[canonicalKey(sourceID, canonicalURL)]
	if !ok {
		return ingest.Article{}, false, nil
	}
	return s.byID[id], true, nil
}

// FindByFingerprint looks up an article by content fingerprint.
func (s *ArticleStore) FindByFingerprint(_ context.Context, sourceID, fingerprint string) (ingest.Article, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPrint[printKey(sourceID, fingerprint)]
	if !ok {
		return ingest.Article{}, false, nil
	}
	return s.byID[id], true, nil
}

// Get fetches an article by ID.
func (s *ArticleStore) Get(_ context.Context, articleID string) (ingest.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	article, ok := s.byID[articleID]
	if !ok {
		return ingest.Article{}, errors.New("article not found")
	}
	return article, nil
}

// ListBySource returns articles for a source published within [from, to).
func (s *ArticleStore) ListBySource(_ context.Context, sourceID string, from, to time.Time) ([]ingest.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ingest.Article
	for _, article := range s.byID {
		if article.SourceID != sourceID {
			continue
		}
		if article.PublishedAt.Before(from) || !article.PublishedAt.Before(to) {
			continue
		}
		out = append(out, article)
	}
	return out, nil
}
