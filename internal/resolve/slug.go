package resolve

import (
	"strings"

	"github.com/farolnews/farol-ingest/internal/gazetteer"
)

// Slugify turns a person name into its canonical alias key: accents folded,
// lowercased, punctuation dropped, spaces joined with hyphens. "João Silva"
// and "joao silva" collapse to the same slug.
func Slugify(name string) string {
	norm := gazetteer.Normalize(name)
	fields := strings.Fields(norm)
	return strings.Join(fields, "-")
}
