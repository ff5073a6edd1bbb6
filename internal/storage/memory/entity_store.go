package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// EntityStore keeps entities and mentions in memory. Mentions are unique per
// (article, entity) and conflicting writes keep the highest confidence.
type EntityStore struct {
	mu       sync.RWMutex
	byID     map[string]ingest.Entity
	byKey    map[string]string
	mentions map[string]map[string]ingest.Mention
}

// NewEntityStore constructs an EntityStore.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		byID:     make(map[string]ingest.Entity),
		byKey:    make(map[string]string),
		mentions: make(map[string]map[string]ingest.Mention),
	}
}

func entityKey(kind ingest.EntityType, key string) string {
	return string(kind) + "\x00" + key
}

// FindCityByCode looks up a city entity by administrative code.
func (s *EntityStore) FindCityByCode(_ context.Context, adminCode string) (ingest.Entity, bool, error) {
	return s.find(entityKey(ingest.EntityCity, adminCode))
}

// FindPersonByAlias looks up a person entity by slug.
func (s *EntityStore) FindPersonByAlias(_ context.Context, slug string) (ingest.Entity, bool, error) {
	return s.find(entityKey(ingest.EntityPerson, slug))
}

func (s *EntityStore) find(key string) (ingest.Entity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return ingest.Entity{}, false, nil
	}
	return s.byID[id], true, nil
}

// SeedCity inserts a city entity, returning the existing row if the
// administrative code is already present.
func (s *EntityStore) SeedCity(_ context.Context, city ingest.Entity) (ingest.Entity, error) {
	return s.insert(city, entityKey(ingest.EntityCity, city.Key))
}

// CreatePerson inserts a person entity, returning the existing row if the
// slug is already present.
func (s *EntityStore) CreatePerson(_ context.Context, person ingest.Entity) (ingest.Entity, error) {
	return s.insert(person, entityKey(ingest.EntityPerson, person.Key))
}

func (s *EntityStore) insert(entity ingest.Entity, key string) (ingest.Entity, error) {
	if entity.ID == "" {
		return ingest.Entity{}, errors.New("entity id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existingID, ok := s.byKey[key]; ok {
		return s.byID[existingID], nil
	}
	s.byID[entity.ID] = entity
	s.byKey[key] = entity.ID
	return entity, nil
}

// UpsertMention records a mention, keeping the highest confidence when the
// (article, entity) pair already exists.
func (s *EntityStore) UpsertMention(_ context.Context, mention ingest.Mention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byEntity, ok := s.mentions[mention.ArticleID]
	if !ok {
		byEntity = make(map[string]ingest.Mention)
		s.mentions[mention.ArticleID] = byEntity
	}
	if prev, ok := byEntity[mention.EntityID]; ok && prev.Confidence >= mention.Confidence {
		return nil
	}
	byEntity[mention.EntityID] = mention
	return nil
}

// ListMentions returns all mentions recorded for an article.
func (s *EntityStore) ListMentions(_ context.Context, articleID string) ([]ingest.Mention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byEntity := s.mentions[articleID]
	out := make([]ingest.Mention, 0, len(byEntity))
	for _, m := range byEntity {
		out = append(out, m)
	}
	return out, nil
}
