package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

func sampleArticle(id, canonicalURL, fingerprint string) ingest.Article {
	return ingest.Article{
		ID:           id,
		SourceID:     "diario",
		URL:          canonicalURL,
		CanonicalURL: canonicalURL,
		Fingerprint:  fingerprint,
		Title:        "Obras no Recife",
		Text:         "Corpo da matéria.",
		PublishedAt:  time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC),
		Status:       ingest.StatusOK,
	}
}

func TestArticleStoreInsertAndLookup(t *testing.T) {
	s := NewArticleStore()
	ctx := context.Background()

	result, err := s.Upsert(ctx, sampleArticle("a1", "https://d.example/x", "fp1"), false)
	require.NoError(t, err)
	require.Equal(t, ingest.OutcomeInserted, result.Outcome)
	require.Equal(t, "a1", result.ArticleID)

	byURL, found, err := s.FindByCanonicalURL(ctx, "diario", "https://d.example/x")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "a1", byURL.ID)

	byPrint, found, err := s.FindByFingerprint(ctx, "diario", "fp1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "a1", byPrint.ID)

	_, found, err = s.FindByCanonicalURL(ctx, "outro", "https://d.example/x")
	require.NoError(t, err)
	require.False(t, found, "dedup keys are scoped per source")
}

func TestArticleStoreConflictWithoutUpdates(t *testing.T) {
	s := NewArticleStore()
	ctx := context.Background()

	_, err := s.Upsert(ctx, sampleArticle("a1", "https://d.example/x", "fp1"), false)
	require.NoError(t, err)

	result, err := s.Upsert(ctx, sampleArticle("a2", "https://d.example/x", "fp2"), false)
	require.NoError(t, err)
	require.Equal(t, ingest.OutcomeDuplicate, result.Outcome)
	require.Equal(t, "a1", result.ArticleID)

	// The duplicate write must not have touched the stored row.
	stored, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "fp1", stored.Fingerprint)
}

func TestArticleStoreUpdateKeepsIdentity(t *testing.T) {
	s := NewArticleStore()
	ctx := context.Background()

	_, err := s.Upsert(ctx, sampleArticle("a1", "https://d.example/x", "fp1"), false)
	require.NoError(t, err)

	updated := sampleArticle("a2", "https://d.example/x", "fp2")
	updated.Title = "Obras ampliadas"
	result, err := s.Upsert(ctx, updated, true)
	require.NoError(t, err)
	require.Equal(t, ingest.OutcomeUpdated, result.Outcome)
	require.Equal(t, "a1", result.ArticleID)

	stored, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "Obras ampliadas", stored.Title)
	require.Equal(t, "fp2", stored.Fingerprint)

	// The fingerprint index follows the update.
	_, found, err := s.FindByFingerprint(ctx, "diario", "fp1")
	require.NoError(t, err)
	require.False(t, found)
	byPrint, found, err := s.FindByFingerprint(ctx, "diario", "fp2")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "a1", byPrint.ID)
}

func TestArticleStoreSkipRowsInvisibleToFingerprintLookup(t *testing.T) {
	s := NewArticleStore()
	ctx := context.Background()

	original := sampleArticle("a1", "https://d.example/x", "fp1")
	_, err := s.Upsert(ctx, original, false)
	require.NoError(t, err)

	skip := sampleArticle("a2", "https://d.example/copia", "fp1")
	skip.Status = ingest.StatusSkippedDupe
	skip.ErrorDetail = "syndicated copy of https://d.example/x"
	_, err = s.Upsert(ctx, skip, false)
	require.NoError(t, err)

	// The fingerprint still resolves to the ingested article, never to the
	// skip row that duplicates it.
	byPrint, found, err := s.FindByFingerprint(ctx, "diario", "fp1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "a1", byPrint.ID)

	// The skip row is still reachable by its own canonical URL.
	row, found, err := s.FindByCanonicalURL(ctx, "diario", "https://d.example/copia")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, ingest.StatusSkippedDupe, row.Status)
}

func TestArticleStoreListBySourceWindow(t *testing.T) {
	s := NewArticleStore()
	ctx := context.Background()

	early := sampleArticle("a1", "https://d.example/1", "fp1")
	early.PublishedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	late := sampleArticle("a2", "https://d.example/2", "fp2")
	late.PublishedAt = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for _, a := range []ingest.Article{early, late} {
		_, err := s.Upsert(ctx, a, false)
		require.NoError(t, err)
	}

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	listed, err := s.ListBySource(ctx, "diario", from, to)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "a1", listed[0].ID)

	// The upper bound is exclusive.
	listed, err = s.ListBySource(ctx, "diario", from, late.PublishedAt)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestEntityStoreInsertReturnsExistingOnConflict(t *testing.T) {
	s := NewEntityStore()
	ctx := context.Background()

	first, err := s.SeedCity(ctx, ingest.Entity{
		ID: "e1", Type: ingest.EntityCity, Key: "2611606", DisplayName: "Recife", Region: "PE", Tracked: true,
	})
	require.NoError(t, err)
	require.Equal(t, "e1", first.ID)

	again, err := s.SeedCity(ctx, ingest.Entity{
		ID: "e2", Type: ingest.EntityCity, Key: "2611606", DisplayName: "Recife",
	})
	require.NoError(t, err)
	require.Equal(t, "e1", again.ID, "conflicting seed returns the existing entity")

	found, ok, err := s.FindCityByCode(ctx, "2611606")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "e1", found.ID)
}

func TestEntityStoreKeysAreTypeScoped(t *testing.T) {
	s := NewEntityStore()
	ctx := context.Background()

	_, err := s.SeedCity(ctx, ingest.Entity{ID: "e1", Type: ingest.EntityCity, Key: "shared"})
	require.NoError(t, err)
	person, err := s.CreatePerson(ctx, ingest.Entity{ID: "e2", Type: ingest.EntityPerson, Key: "shared"})
	require.NoError(t, err)
	require.Equal(t, "e2", person.ID)
}

func TestEntityStoreRejectsMissingID(t *testing.T) {
	s := NewEntityStore()
	_, err := s.CreatePerson(context.Background(), ingest.Entity{Type: ingest.EntityPerson, Key: "x"})
	require.Error(t, err)
}

func TestUpsertMentionKeepsHighestConfidence(t *testing.T) {
	s := NewEntityStore()
	ctx := context.Background()

	mention := ingest.Mention{ArticleID: "a1", EntityID: "e1", EntityType: ingest.EntityCity, Confidence: 0.75}
	require.NoError(t, s.UpsertMention(ctx, mention))

	lower := mention
	lower.Confidence = 0.40
	require.NoError(t, s.UpsertMention(ctx, lower))

	higher := mention
	higher.Confidence = 0.95
	require.NoError(t, s.UpsertMention(ctx, higher))

	mentions, err := s.ListMentions(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	require.InDelta(t, 0.95, mentions[0].Confidence, 1e-9)
}

func TestJobStoreLifecycle(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	started := time.Date(2026, 8, 10, 15, 0, 0, 0, time.UTC)

	run := ingest.JobRun{ID: "r1", FlowName: "farol-ingest", SourceID: "diario", Status: ingest.RunRunning, StartedAt: started}
	require.NoError(t, s.CreateRun(ctx, run))
	require.Error(t, s.CreateRun(ctx, run), "duplicate run id")

	ended := started.Add(time.Minute)
	run.Status = ingest.RunSucceeded
	run.EndedAt = &ended
	run.Stats = ingest.RunStats{Fetched: 3, Inserted: 2, Dupes: 1}
	require.NoError(t, s.FinalizeRun(ctx, run))

	stored, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, ingest.RunSucceeded, stored.Status)
	require.Equal(t, 2, stored.Stats.Inserted)
	require.NotNil(t, stored.EndedAt)

	require.Error(t, s.FinalizeRun(ctx, ingest.JobRun{ID: "missing"}))
}

func TestBlobStoreRoundTrip(t *testing.T) {
	s := NewBlobStore()
	uri, err := s.PutObject(context.Background(), "raw/diario/a1.html", "text/html", []byte("<html/>"))
	require.NoError(t, err)
	require.Equal(t, "memory://raw/diario/a1.html", uri)

	data, ok := s.GetObject("raw/diario/a1.html")
	require.True(t, ok)
	require.Equal(t, []byte("<html/>"), data)

	_, ok = s.GetObject("raw/diario/missing.html")
	require.False(t, ok)
}
