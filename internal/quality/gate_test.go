package quality

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/farolnews/farol-ingest/internal/extract"
	"github.com/farolnews/farol-ingest/internal/ingest"
)

var ptText = strings.Repeat(
	"A prefeitura anunciou que as obras de pavimentação não vão parar durante o inverno, "+
		"mesmo com as chuvas que já atingem os municípios do sertão. ", 5)

var enText = strings.Repeat(
	"The city council announced that the road works will not stop during the winter, "+
		"even with the rains that have been hitting the region. ", 5)

func acceptableContent() extract.Content {
	ts := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)
	return extract.Content{
		Title:       "Obras seguem no inverno",
		Text:        ptText,
		PublishedAt: &ts,
	}
}

func gateSource() ingest.Source {
	return ingest.Source{ID: "s1", MinContentLen: 300, ExpectedLanguage: "pt"}
}

func TestCheckAcceptsGoodContent(t *testing.T) {
	require.NoError(t, NewGate().Check(gateSource(), acceptableContent()))
}

func TestCheckRejectsShortText(t *testing.T) {
	content := acceptableContent()
	content.Text = "curto demais"

	err := NewGate().Check(gateSource(), content)
	q, ok := ingest.AsQuality(err)
	require.True(t, ok)
	require.Equal(t, ingest.ReasonQualityLength, q.Reason)
}

func TestCheckRejectsMissingDate(t *testing.T) {
	content := acceptableContent()
	content.PublishedAt = nil

	err := NewGate().Check(gateSource(), content)
	q, ok := ingest.AsQuality(err)
	require.True(t, ok)
	require.Equal(t, ingest.ReasonQualityDate, q.Reason)
}

func TestCheckRejectsWrongLanguage(t *testing.T) {
	content := acceptableContent()
	content.Text = enText

	err := NewGate().Check(gateSource(), content)
	q, ok := ingest.AsQuality(err)
	require.True(t, ok)
	require.Equal(t, ingest.ReasonQualityLanguage, q.Reason)
}

func TestDetectLanguage(t *testing.T) {
	require.Equal(t, "pt", DetectLanguage(ptText))
	require.Equal(t, "en", DetectLanguage(enText))
	// Too little signal: stay silent instead of guessing.
	require.Equal(t, "", DetectLanguage("Recife"))
}
