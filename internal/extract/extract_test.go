package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

func testSource() ingest.Source {
	return ingest.Source{
		ID:       "diario-pe",
		Timezone: "America/Recife",
		Selectors: ingest.SelectorSet{
			Title:         "h1.article-title",
			Summary:       "p.article-subtitle",
			Body:          "div.article-body p",
			PublishedDate: "span.article-date",
			Authors:       "span.article-author",
			LeadImage:     "figure.article-image img",
		},
		CleanupSelectors: []string{"div.ads"},
		FallbackTitle:    "Sem título",
	}
}

const articleHTML = `<!doctype html>
<html>
<head>
  <title>Titulo da aba</title>
  <meta property="og:title" content="Titulo OG">
  <meta property="article:published_time" content="2026-08-05T10:00:00-03:00">
</head>
<body>
  <h1 class="article-title">Chuvas voltam ao Sertão</h1>
  <p class="article-subtitle">Açudes registram aumento no volume</p>
  <span class="article-author">Maria Souza</span>
  <figure class="article-image"><img src="/img/acude.jpg"></figure>
  <div class="ads">Assine já!</div>
  <div class="article-body">
    <p>As chuvas desta semana elevaram o nível dos açudes da região.</p>
    <p>Prefeituras do interior comemoram o resultado.</p>
    <script>window.track()</script>
  </div>
</body>
</html>`

func TestExtractWithSelectors(t *testing.T) {
	e := New(nil, zap.NewNop())

	content, err := e.Extract(testSource(), "https://example.com/artigo", articleHTML)
	require.NoError(t, err)

	require.Equal(t, "Chuvas voltam ao Sertão", content.Title)
	require.Equal(t, "Açudes registram aumento no volume", content.Summary)
	require.Contains(t, content.Text, "elevaram o nível dos açudes")
	require.Contains(t, content.Text, "Prefeituras do interior")
	require.NotContains(t, content.Text, "Assine já")
	require.NotContains(t, content.Text, "window.track")
	require.Equal(t, []string{"Maria Souza"}, content.Authors)
	require.Equal(t, "/img/acude.jpg", content.LeadImage)
	require.Equal(t, articleHTML, content.RawHTML)

	require.NotNil(t, content.PublishedAt)
	require.Equal(t,
		time.Date(2026, 8, 5, 13, 0, 0, 0, time.UTC).Unix(),
		content.PublishedAt.Unix())
}

func TestExtractTitleFallsBackToMeta(t *testing.T) {
	e := New(nil, zap.NewNop())
	source := testSource()
	source.Selectors.Title = "h1.missing"

	content, err := e.Extract(source, "https://example.com/artigo", articleHTML)
	require.NoError(t, err)
	require.Equal(t, "Titulo OG", content.Title)
}

func TestExtractVisibleDateFallback(t *testing.T) {
	e := New(nil, zap.NewNop())
	html := `<html><body>
	  <h1 class="article-title">T</h1>
	  <span class="article-date">Publicado em 12 de março de 2026, às 14h30</span>
	  <div class="article-body"><p>` + strings.Repeat("conteudo ", 20) + `</p></div>
	</body></html>`

	content, err := e.Extract(testSource(), "https://example.com/a", html)
	require.NoError(t, err)
	require.NotNil(t, content.PublishedAt)

	loc, err := time.LoadLocation("America/Recife")
	require.NoError(t, err)
	require.Equal(t,
		time.Date(2026, 3, 12, 14, 30, 0, 0, loc).Unix(),
		content.PublishedAt.Unix())
}

func TestExtractNoDateYieldsNil(t *testing.T) {
	e := New(nil, zap.NewNop())
	html := `<html><body><h1 class="article-title">T</h1>
	  <div class="article-body"><p>` + strings.Repeat("texto ", 30) + `</p></div>
	</body></html>`

	content, err := e.Extract(testSource(), "https://example.com/a", html)
	require.NoError(t, err)
	require.Nil(t, content.PublishedAt)
}

func TestExtractReadabilityFallback(t *testing.T) {
	e := New(nil, zap.NewNop())
	source := testSource()
	// No body selector configured; readability must recover the text.
	source.Selectors.Body = ""

	paragraph := strings.Repeat("A obra da adutora avança no município e deve ser entregue este ano. ", 10)
	html := `<html><head><title>Obra da adutora</title></head><body>
	  <article><h1>Obra da adutora</h1><p>` + paragraph + `</p></article>
	</body></html>`

	content, err := e.Extract(source, "https://example.com/obra", html)
	require.NoError(t, err)
	require.Contains(t, content.Text, "obra da adutora avança")
}

func TestExtractFallbackTitle(t *testing.T) {
	e := New(nil, zap.NewNop())
	source := testSource()

	content, err := e.Extract(source, "https://example.com/x", `<html><body><p>vazio</p></body></html>`)
	require.NoError(t, err)
	require.Equal(t, "Sem título", content.Title)
}
