package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// EntityStore persists entities and mentions.
type EntityStore struct {
	pool dbConn
}

// NewEntityStore constructs a store from an existing pool.
func NewEntityStore(pool dbConn) (*EntityStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &EntityStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *EntityStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const entityColumns = `id, entity_type, key, display_name, region, aliases, tracked`

const selectEntity = `SELECT ` + entityColumns + ` FROM entities WHERE entity_type = $1 AND key = $2`

// FindCityByCode looks up a city entity by administrative code.
func (s *EntityStore) FindCityByCode(ctx context.Context, adminCode string) (ingest.Entity, bool, error) {
	return s.findByKey(ctx, ingest.EntityCity, adminCode)
}

// FindPersonByAlias looks up a person entity by slug.
func (s *EntityStore) FindPersonByAlias(ctx context.Context, slug string) (ingest.Entity, bool, error) {
	return s.findByKey(ctx, ingest.EntityPerson, slug)
}

func (s *EntityStore) findByKey(ctx context.Context, kind ingest.EntityType, key string) (ingest.Entity, bool, error) {
	entity, err := scanEntity(s.pool.QueryRow(ctx, selectEntity, string(kind), key))
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.Entity{}, false, nil
	}
	if err != nil {
		return ingest.Entity{}, false, fmt.Errorf("find %s %s: %w", kind, key, err)
	}
	return entity, true, nil
}

const insertEntity = `
INSERT INTO entities (` + entityColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (entity_type, key) DO UPDATE SET key = EXCLUDED.key
RETURNING ` + entityColumns

// SeedCity inserts a city entity. An existing administrative code wins and
// its row is returned unchanged except for the conflict no-op.
func (s *EntityStore) SeedCity(ctx context.Context, city ingest.Entity) (ingest.Entity, error) {
	return s.insert(ctx, city)
}

// CreatePerson inserts a person entity, returning the existing row when the
// slug is taken.
func (s *EntityStore) CreatePerson(ctx context.Context, person ingest.Entity) (ingest.Entity, error) {
	return s.insert(ctx, person)
}

func (s *EntityStore) insert(ctx context.Context, entity ingest.Entity) (ingest.Entity, error) {
	if entity.ID == "" {
		return ingest.Entity{}, fmt.Errorf("entity id is required")
	}
	row := s.pool.QueryRow(ctx, insertEntity,
		entity.ID,
		string(entity.Type),
		entity.Key,
		entity.DisplayName,
		entity.Region,
		entity.Aliases,
		entity.Tracked,
	)
	stored, err := scanEntity(row)
	if err != nil {
		return ingest.Entity{}, fmt.Errorf("insert entity %s: %w", entity.Key, err)
	}
	return stored, nil
}

const upsertMention = `
INSERT INTO mentions (
	article_id, entity_id, entity_type, matched, admin_code,
	confidence, low_confidence, disambiguation
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (article_id, entity_id) DO UPDATE SET
	matched = EXCLUDED.matched,
	admin_code = EXCLUDED.admin_code,
	confidence = EXCLUDED.confidence,
	low_confidence = EXCLUDED.low_confidence,
	disambiguation = EXCLUDED.disambiguation
WHERE mentions.confidence < EXCLUDED.confidence`

// UpsertMention records a mention; a rerun only moves confidence upward.
func (s *EntityStore) UpsertMention(ctx context.Context, mention ingest.Mention) error {
	_, err := s.pool.Exec(ctx, upsertMention,
		mention.ArticleID,
		mention.EntityID,
		string(mention.EntityType),
		mention.Matched,
		mention.AdminCode,
		mention.Confidence,
		mention.LowConfidence,
		string(mention.Disambiguation),
	)
	if err != nil {
		return fmt.Errorf("upsert mention: %w", err)
	}
	return nil
}

const listMentions = `
SELECT article_id, entity_id, entity_type, matched, admin_code,
	confidence, low_confidence, disambiguation
FROM mentions WHERE article_id = $1 ORDER BY entity_type, entity_id`

// ListMentions returns all mentions recorded for an article.
func (s *EntityStore) ListMentions(ctx context.Context, articleID string) ([]ingest.Mention, error) {
	rows, err := s.pool.Query(ctx, listMentions, articleID)
	if err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}
	defer rows.Close()

	var out []ingest.Mention
	for rows.Next() {
		var (
			m              ingest.Mention
			entityType     string
			disambiguation string
		)
		if err := rows.Scan(
			&m.ArticleID,
			&m.EntityID,
			&entityType,
			&m.Matched,
			&m.AdminCode,
			&m.Confidence,
			&m.LowConfidence,
			&disambiguation,
		); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		m.EntityType = ingest.EntityType(entityType)
		m.Disambiguation = ingest.Disambiguation(disambiguation)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}
	return out, nil
}

func scanEntity(row pgx.Row) (ingest.Entity, error) {
	var (
		entity ingest.Entity
		kind   string
	)
	err := row.Scan(
		&entity.ID,
		&kind,
		&entity.Key,
		&entity.DisplayName,
		&entity.Region,
		&entity.Aliases,
		&entity.Tracked,
	)
	if err != nil {
		return ingest.Entity{}, err
	}
	entity.Type = ingest.EntityType(kind)
	return entity, nil
}
