package canonical

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeNormalizesURL(t *testing.T) {
	c := New(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercase scheme and host",
			in:   "HTTPS://Www.Example.COM.br/Noticia/Titulo",
			want: "https://www.example.com.br/Noticia/Titulo",
		},
		{
			name: "strip default port",
			in:   "https://example.com:443/artigo",
			want: "https://example.com/artigo",
		},
		{
			name: "drop fragment",
			in:   "https://example.com/artigo#comentarios",
			want: "https://example.com/artigo",
		},
		{
			name: "strip tracking params keep content params",
			in:   "https://example.com/artigo?utm_source=x&id=42&fbclid=abc",
			want: "https://example.com/artigo?id=42",
		},
		{
			name: "sort query params",
			in:   "https://example.com/busca?b=2&a=1",
			want: "https://example.com/busca?a=1&b=2",
		},
		{
			name: "trim trailing slash",
			in:   "https://example.com/artigo/",
			want: "https://example.com/artigo",
		},
		{
			name: "root slash survives",
			in:   "https://example.com/",
			want: "https://example.com/",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Canonicalize(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalizeExtraDenyParams(t *testing.T) {
	c := New([]string{"share"})
	got, err := c.Canonicalize("https://example.com/artigo?share=home&id=1")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/artigo?id=1", got)
}

func TestFingerprintIgnoresWhitespaceAndCase(t *testing.T) {
	a := Fingerprint("Chuvas no Sertão", "O açude   voltou a sangrar.")
	b := Fingerprint("chuvas no sertão", "o açude voltou\na sangrar.")
	require.Equal(t, a, b)
}

func TestFingerprintSeparatesFields(t *testing.T) {
	// The same bytes split differently across title and text must not
	// collide.
	a := Fingerprint("ab", "c")
	b := Fingerprint("a", "bc")
	require.NotEqual(t, a, b)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a := Fingerprint("Título", "corpo original")
	b := Fingerprint("Título", "corpo revisado")
	require.NotEqual(t, a, b)
}
