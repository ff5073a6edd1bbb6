// Package resolve links article text to known entities: cities through the
// gazetteer, persons through the NER service.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/farolnews/farol-ingest/internal/gazetteer"
	"github.com/farolnews/farol-ingest/internal/ingest"
	"github.com/farolnews/farol-ingest/internal/metrics"
)

// Resolver resolves city and person mentions for one article.
type Resolver struct {
	gaz      *gazetteer.Gazetteer
	entities ingest.EntityStore
	ner      ingest.NERClient
	ids      ingest.IDGenerator
	floor    float64
	logger   *zap.Logger
}

// Confidence assigned per disambiguation rule. Ambiguous mentions are kept
// for every candidate rather than dropped, so downstream consumers can see
// the ambiguity instead of silently losing a city.
const (
	confidenceUnique        = 0.95
	confidenceRegionContext = 0.85
	confidenceDefaultRegion = 0.75
	confidenceAmbiguous     = 0.40
)

// New creates a resolver. The floor marks person mentions below it as low
// confidence without discarding them.
func New(gaz *gazetteer.Gazetteer, entities ingest.EntityStore, ner ingest.NERClient, ids ingest.IDGenerator, floor float64, logger *zap.Logger) *Resolver {
	return &Resolver{gaz: gaz, entities: entities, ner: ner, ids: ids, floor: floor, logger: logger}
}

// Resolution is the per-article output of entity resolution.
type Resolution struct {
	Mentions []ingest.Mention
	Cities   []ingest.CityRef
	Persons  []ingest.PersonRef
	// NERDegraded marks a run where the NER service failed and person
	// resolution was skipped. City resolution is unaffected.
	NERDegraded bool
}

// Resolve scans the article's title and body for city names, disambiguates
// them, and asks the NER service for person candidates. The same inputs and
// gazetteer version always yield the same mentions.
func (r *Resolver) Resolve(ctx context.Context, source ingest.Source, article ingest.Article) (Resolution, error) {
	var res Resolution

	text := article.Title + "\n" + article.Text
	if err := r.resolveCities(ctx, article.ID, text, source.DefaultRegion, &res); err != nil {
		return Resolution{}, err
	}
	if err := r.resolvePersons(ctx, article.ID, text, &res); err != nil {
		return Resolution{}, err
	}

	collapseMentions(&res)
	return res, nil
}

func (r *Resolver) resolveCities(ctx context.Context, articleID, text, defaultRegion string, res *Resolution) error {
	norm := gazetteer.Normalize(text)
	matches := r.gaz.FindCities(norm)
	if len(matches) == 0 {
		return nil
	}
	regionsInText := r.gaz.RegionsIn(norm)

	for _, match := range matches {
		cities, rule, conf := disambiguate(match.Candidates, regionsInText, defaultRegion)
		for _, city := range cities {
			entity, err := r.ensureCity(ctx, city)
			if err != nil {
				return err
			}
			res.Mentions = append(res.Mentions, ingest.Mention{
				ArticleID:      articleID,
				EntityID:       entity.ID,
				EntityType:     ingest.EntityCity,
				Matched:        match.Matched,
				AdminCode:      city.Code,
				Confidence:     conf,
				LowConfidence:  rule == ingest.DisambiguationAmbiguous,
				Disambiguation: rule,
			})
			res.Cities = append(res.Cities, ingest.CityRef{
				Name:      city.Name,
				Region:    city.Region,
				AdminCode: city.Code,
			})
			metrics.CountMention(string(ingest.EntityCity))
		}
	}
	return nil
}

// disambiguate applies the resolution ladder to one matched name: a unique
// candidate wins outright, then a region named in the text, then the
// source's home region. Anything still ambiguous is emitted for every
// candidate at low confidence.
func disambiguate(candidates []gazetteer.City, regionsInText []string, defaultRegion string) ([]gazetteer.City, ingest.Disambiguation, float64) {
	if len(candidates) == 1 {
		return candidates, ingest.DisambiguationUnique, confidenceUnique
	}
	if len(regionsInText) > 0 {
		inText := make(map[string]bool, len(regionsInText))
		for _, code := range regionsInText {
			inText[code] = true
		}
		var narrowed []gazetteer.City
		for _, city := range candidates {
			if inText[city.Region] {
				narrowed = append(narrowed, city)
			}
		}
		if len(narrowed) == 1 {
			return narrowed, ingest.DisambiguationRegionContext, confidenceRegionContext
		}
	}
	if defaultRegion != "" {
		var narrowed []gazetteer.City
		for _, city := range candidates {
			if city.Region == defaultRegion {
				narrowed = append(narrowed, city)
			}
		}
		if len(narrowed) == 1 {
			return narrowed, ingest.DisambiguationDefaultRegion, confidenceDefaultRegion
		}
	}
	return candidates, ingest.DisambiguationAmbiguous, confidenceAmbiguous
}

func (r *Resolver) ensureCity(ctx context.Context, city gazetteer.City) (ingest.Entity, error) {
	entity, found, err := r.entities.FindCityByCode(ctx, city.Code)
	if err != nil {
		return ingest.Entity{}, fmt.Errorf("find city %s: %w", city.Code, err)
	}
	if found {
		return entity, nil
	}
	id, err := r.ids.NewID()
	if err != nil {
		return ingest.Entity{}, fmt.Errorf("new entity id: %w", err)
	}
	entity, err = r.entities.SeedCity(ctx, ingest.Entity{
		ID:          id,
		Type:        ingest.EntityCity,
		Key:         city.Code,
		DisplayName: city.Name,
		Region:      city.Region,
		Aliases:     city.Aliases,
		Tracked:     false,
	})
	if err != nil {
		return ingest.Entity{}, fmt.Errorf("seed city %s: %w", city.Code, err)
	}
	return entity, nil
}

func (r *Resolver) resolvePersons(ctx context.Context, articleID, text string, res *Resolution) error {
	candidates, err := r.ner.Candidates(ctx, text)
	if err != nil {
		r.logger.Warn("ner request failed; skipping person resolution",
			zap.String("article_id", articleID),
			zap.Error(err))
		res.NERDegraded = true
		return nil
	}
	for _, cand := range candidates {
		span := strings.TrimSpace(cand.Span)
		slug := Slugify(span)
		if span == "" || slug == "" {
			continue
		}
		entity, err := r.ensurePerson(ctx, span, slug)
		if err != nil {
			return err
		}
		res.Mentions = append(res.Mentions, ingest.Mention{
			ArticleID:     articleID,
			EntityID:      entity.ID,
			EntityType:    ingest.EntityPerson,
			Matched:       span,
			Confidence:    cand.Confidence,
			LowConfidence: cand.Confidence < r.floor,
		})
		res.Persons = append(res.Persons, ingest.PersonRef{
			Name:       entity.DisplayName,
			Slug:       entity.Key,
			Confidence: cand.Confidence,
		})
		metrics.CountMention(string(ingest.EntityPerson))
	}
	return nil
}

func (r *Resolver) ensurePerson(ctx context.Context, span, slug string) (ingest.Entity, error) {
	entity, found, err := r.entities.FindPersonByAlias(ctx, slug)
	if err != nil {
		return ingest.Entity{}, fmt.Errorf("find person %s: %w", slug, err)
	}
	if found {
		return entity, nil
	}
	id, err := r.ids.NewID()
	if err != nil {
		return ingest.Entity{}, fmt.Errorf("new entity id: %w", err)
	}
	entity, err = r.entities.CreatePerson(ctx, ingest.Entity{
		ID:          id,
		Type:        ingest.EntityPerson,
		Key:         slug,
		DisplayName: span,
		Aliases:     []string{slug},
		Tracked:     false,
	})
	if err != nil {
		return ingest.Entity{}, fmt.Errorf("create person %s: %w", slug, err)
	}
	return entity, nil
}

// collapseMentions folds repeated mentions of one entity into a single
// mention carrying the highest confidence, then orders everything so output
// is stable across runs.
func collapseMentions(res *Resolution) {
	best := make(map[string]ingest.Mention, len(res.Mentions))
	for _, m := range res.Mentions {
		if prev, ok := best[m.EntityID]; !ok || m.Confidence > prev.Confidence {
			best[m.EntityID] = m
		}
	}
	mentions := make([]ingest.Mention, 0, len(best))
	for _, m := range best {
		mentions = append(mentions, m)
	}
	sort.Slice(mentions, func(i, j int) bool {
		if mentions[i].EntityType != mentions[j].EntityType {
			return mentions[i].EntityType < mentions[j].EntityType
		}
		return mentions[i].EntityID < mentions[j].EntityID
	})
	res.Mentions = mentions

	res.Cities = dedupeCities(res.Cities)
	res.Persons = dedupePersons(res.Persons)
}

func dedupeCities(cities []ingest.CityRef) []ingest.CityRef {
	seen := make(map[string]bool, len(cities))
	out := cities[:0]
	for _, c := range cities {
		if seen[c.AdminCode] {
			continue
		}
		seen[c.AdminCode] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AdminCode < out[j].AdminCode })
	return out
}

func dedupePersons(persons []ingest.PersonRef) []ingest.PersonRef {
	best := make(map[string]ingest.PersonRef, len(persons))
	for _, p := range persons {
		if prev, ok := best[p.Slug]; !ok || p.Confidence > prev.Confidence {
			best[p.Slug] = p
		}
	}
	out := make([]ingest.PersonRef, 0, len(best))
	for _, p := range best {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}
