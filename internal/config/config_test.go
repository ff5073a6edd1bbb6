package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "farol-ingest", cfg.Pipeline.FlowName)
	require.Equal(t, "v1", cfg.Pipeline.Version)
	require.Equal(t, 4, cfg.Pipeline.Concurrency)
	require.Equal(t, 3, cfg.Pipeline.PublishRetry)
	require.True(t, cfg.Politeness.RespectRobots)
	require.InDelta(t, 2.0, cfg.Politeness.DefaultRPS, 1e-9)
	require.Equal(t, 15, cfg.HTTP.TimeoutSeconds)
	require.False(t, cfg.Headless.Enabled)
	require.InDelta(t, 0.5, cfg.NER.ConfidenceFloor, 1e-9)
	require.Equal(t, "memory", cfg.DB.Provider)
	require.Equal(t, "memory", cfg.PubSub.Provider)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  version: "v9"
  concurrency: 8
politeness:
  default_rps: 0.5
db:
  provider: postgres
  dsn: "postgres://farol@localhost/farol"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "v9", cfg.Pipeline.Version)
	require.Equal(t, 8, cfg.Pipeline.Concurrency)
	require.InDelta(t, 0.5, cfg.Politeness.DefaultRPS, 1e-9)
	require.Equal(t, "postgres", cfg.DB.Provider)
	// Untouched keys keep their defaults.
	require.Equal(t, "farol-ingest", cfg.Pipeline.FlowName)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }},
		{"empty version", func(c *Config) { c.Pipeline.Version = "" }},
		{"zero http timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }},
		{"zero rps", func(c *Config) { c.Politeness.DefaultRPS = 0 }},
		{"headless without parallelism", func(c *Config) {
			c.Headless.Enabled = true
			c.Headless.MaxParallel = 0
		}},
		{"postgres without dsn", func(c *Config) { c.DB.Provider = "postgres" }},
		{"pubsub without topic", func(c *Config) {
			c.PubSub.Provider = "pubsub"
			c.PubSub.ProjectID = "farol"
		}},
		{"gcs without bucket", func(c *Config) { c.Blob.Provider = "gcs" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadSourcesAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  - id: diario-pe
    name: "Diário de Pernambuco"
    base_url: "https://diario.example"
    active: true
    strategies: [feed, listing]
  - id: folha-sertao
    name: "Folha do Sertão"
    base_url: "https://folha.example"
    active: true
    strategies: [listing]
    min_content_length: 200
    headless_budget_fraction: 0.25
    expected_language: pt
`), 0o644))

	sources, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	first := sources[0]
	require.Equal(t, "America/Recife", first.Timezone)
	require.Equal(t, 300, first.MinContentLen)
	require.InDelta(t, 0.10, first.HeadlessBudget, 1e-9)
	require.Equal(t, "pt", first.ExpectedLanguage)
	require.Equal(t, "Sem título", first.FallbackTitle)
	require.Equal(t, 3, first.Pagination.MaxPages)

	second := sources[1]
	require.Equal(t, 200, second.MinContentLen)
	require.InDelta(t, 0.25, second.HeadlessBudget, 1e-9)
}

func TestLoadSourcesRejectsInvalidCatalogs(t *testing.T) {
	dir := t.TempDir()

	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	_, err := LoadSources(write("missing-id.yaml", `
sources:
  - name: "Sem ID"
    strategies: [feed]
`))
	require.Error(t, err)

	_, err = LoadSources(write("dup.yaml", `
sources:
  - id: a
    strategies: [feed]
  - id: a
    strategies: [feed]
`))
	require.Error(t, err)

	_, err = LoadSources(write("no-strategies.yaml", `
sources:
  - id: a
`))
	require.Error(t, err)

	_, err = LoadSources(filepath.Join(dir, "does-not-exist.yaml"))
	require.Error(t, err)
}
