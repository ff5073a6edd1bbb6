package resolve

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/farolnews/farol-ingest/internal/gazetteer"
	"github.com/farolnews/farol-ingest/internal/ingest"
	"github.com/farolnews/farol-ingest/internal/storage/memory"
)

var resolverSnapshot = []byte(`
version: "test-1"
regions:
  PE: Pernambuco
  PB: "Paraíba"
  BA: Bahia
cities:
  - name: Recife
    region: PE
    code: "2611606"
  - name: Triunfo
    region: PE
    code: "2615706"
  - name: Triunfo
    region: PB
    code: "2516958"
  - name: Bonito
    region: PE
    code: "2602308"
  - name: Bonito
    region: BA
    code: "2904050"
`)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("id-%04d", s.n), nil
}

type fakeNER struct {
	candidates []ingest.PersonCandidate
	err        error
}

func (f *fakeNER) Candidates(context.Context, string) ([]ingest.PersonCandidate, error) {
	return f.candidates, f.err
}

func newTestResolver(t *testing.T, ner ingest.NERClient) (*Resolver, *memory.EntityStore) {
	t.Helper()
	gaz, err := gazetteer.Parse(resolverSnapshot)
	require.NoError(t, err)
	store := memory.NewEntityStore()
	return New(gaz, store, ner, &seqIDs{}, 0.5, zap.NewNop()), store
}

func peSource() ingest.Source {
	return ingest.Source{ID: "s1", DefaultRegion: "PE"}
}

func TestResolveUniqueCity(t *testing.T) {
	r, _ := newTestResolver(t, &fakeNER{})

	res, err := r.Resolve(context.Background(), peSource(), ingest.Article{
		ID:    "a1",
		Title: "Obras avançam no Recife",
		Text:  "A prefeitura do Recife anunciou novas obras.",
	})
	require.NoError(t, err)
	require.Len(t, res.Mentions, 1)

	m := res.Mentions[0]
	require.Equal(t, ingest.EntityCity, m.EntityType)
	require.Equal(t, "2611606", m.AdminCode)
	require.Equal(t, ingest.DisambiguationUnique, m.Disambiguation)
	require.InDelta(t, 0.95, m.Confidence, 1e-9)
	require.False(t, m.LowConfidence)

	require.Len(t, res.Cities, 1)
	require.Equal(t, "Recife", res.Cities[0].Name)
}

func TestResolveRegionContextBeatsDefaultRegion(t *testing.T) {
	r, _ := newTestResolver(t, &fakeNER{})

	// The source defaults to PE, but the text names Paraíba explicitly.
	res, err := r.Resolve(context.Background(), peSource(), ingest.Article{
		ID:    "a1",
		Title: "Festival começa em Triunfo",
		Text:  "O evento reúne artistas de toda a Paraíba.",
	})
	require.NoError(t, err)
	require.Len(t, res.Mentions, 1)
	require.Equal(t, "2516958", res.Mentions[0].AdminCode)
	require.Equal(t, ingest.DisambiguationRegionContext, res.Mentions[0].Disambiguation)
	require.InDelta(t, 0.85, res.Mentions[0].Confidence, 1e-9)
}

func TestResolveDefaultRegionFallback(t *testing.T) {
	r, _ := newTestResolver(t, &fakeNER{})

	res, err := r.Resolve(context.Background(), peSource(), ingest.Article{
		ID:    "a1",
		Title: "Chuva atinge Triunfo",
		Text:  "Moradores relataram alagamentos.",
	})
	require.NoError(t, err)
	require.Len(t, res.Mentions, 1)
	require.Equal(t, "2615706", res.Mentions[0].AdminCode)
	require.Equal(t, ingest.DisambiguationDefaultRegion, res.Mentions[0].Disambiguation)
	require.InDelta(t, 0.75, res.Mentions[0].Confidence, 1e-9)
}

func TestResolveAmbiguousEmitsEveryCandidate(t *testing.T) {
	r, _ := newTestResolver(t, &fakeNER{})

	// No region context and no default region: Bonito stays ambiguous.
	source := ingest.Source{ID: "s1"}
	res, err := r.Resolve(context.Background(), source, ingest.Article{
		ID:    "a1",
		Title: "Turismo cresce em Bonito",
		Text:  "Pousadas registram lotação máxima.",
	})
	require.NoError(t, err)
	require.Len(t, res.Mentions, 2)
	for _, m := range res.Mentions {
		require.Equal(t, ingest.DisambiguationAmbiguous, m.Disambiguation)
		require.InDelta(t, 0.40, m.Confidence, 1e-9)
		require.True(t, m.LowConfidence)
	}
	require.Len(t, res.Cities, 2)
	require.Equal(t, "2602308", res.Cities[0].AdminCode)
	require.Equal(t, "2904050", res.Cities[1].AdminCode)
}

func TestResolveSeedsCityEntityOnce(t *testing.T) {
	r, store := newTestResolver(t, &fakeNER{})
	article := ingest.Article{ID: "a1", Title: "Recife", Text: "Recife de novo."}

	res1, err := r.Resolve(context.Background(), peSource(), article)
	require.NoError(t, err)
	res2, err := r.Resolve(context.Background(), peSource(), article)
	require.NoError(t, err)
	require.Equal(t, res1.Mentions[0].EntityID, res2.Mentions[0].EntityID)

	entity, found, err := store.FindCityByCode(context.Background(), "2611606")
	require.NoError(t, err)
	require.True(t, found)
	// Tracking is an editorial decision made elsewhere, never by the seeder.
	require.False(t, entity.Tracked)
	require.Equal(t, "Recife", entity.DisplayName)
}

func TestResolvePersonsMergeOnSlug(t *testing.T) {
	ner := &fakeNER{candidates: []ingest.PersonCandidate{
		{Span: "João Silva", Confidence: 0.91},
		{Span: "joao silva", Confidence: 0.77},
	}}
	r, _ := newTestResolver(t, ner)

	res, err := r.Resolve(context.Background(), peSource(), ingest.Article{
		ID:    "a1",
		Title: "Entrevista",
		Text:  "Depoimento sem nomes de cidade.",
	})
	require.NoError(t, err)
	require.False(t, res.NERDegraded)

	// Accent-folded variants collapse into one entity at the best confidence.
	require.Len(t, res.Mentions, 1)
	require.Equal(t, ingest.EntityPerson, res.Mentions[0].EntityType)
	require.InDelta(t, 0.91, res.Mentions[0].Confidence, 1e-9)

	require.Len(t, res.Persons, 1)
	require.Equal(t, "joao-silva", res.Persons[0].Slug)
	require.Equal(t, "João Silva", res.Persons[0].Name)
}

func TestResolvePersonBelowFloorKeptAsLowConfidence(t *testing.T) {
	ner := &fakeNER{candidates: []ingest.PersonCandidate{
		{Span: "Maria Souza", Confidence: 0.3},
	}}
	r, _ := newTestResolver(t, ner)

	res, err := r.Resolve(context.Background(), peSource(), ingest.Article{
		ID: "a1", Title: "Nota", Text: "Sem cidades.",
	})
	require.NoError(t, err)
	require.Len(t, res.Mentions, 1)
	require.True(t, res.Mentions[0].LowConfidence)
	require.Len(t, res.Persons, 1)
}

func TestResolveNERFailureDegradesWithoutLosingCities(t *testing.T) {
	r, _ := newTestResolver(t, &fakeNER{err: errors.New("ner down")})

	res, err := r.Resolve(context.Background(), peSource(), ingest.Article{
		ID:    "a1",
		Title: "Recife recebe evento",
		Text:  "Programação divulgada.",
	})
	require.NoError(t, err)
	require.True(t, res.NERDegraded)
	require.Len(t, res.Cities, 1)
	require.Empty(t, res.Persons)
}

func TestResolveIsDeterministic(t *testing.T) {
	ner := &fakeNER{candidates: []ingest.PersonCandidate{
		{Span: "Ana Lima", Confidence: 0.8},
	}}
	r, _ := newTestResolver(t, ner)
	article := ingest.Article{
		ID:    "a1",
		Title: "Recife e Triunfo na pauta",
		Text:  "Encontro discute turismo em Recife e em Triunfo.",
	}

	first, err := r.Resolve(context.Background(), peSource(), article)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Resolve(context.Background(), peSource(), article)
		require.NoError(t, err)
		require.Equal(t, first.Mentions, again.Mentions)
		require.Equal(t, first.Cities, again.Cities)
		require.Equal(t, first.Persons, again.Persons)
	}
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "joao-silva", Slugify("  João   Silva "))
	require.Equal(t, "maria-jose-de-sa", Slugify("Maria-José de Sá"))
	require.Equal(t, "", Slugify("!!!"))
}
