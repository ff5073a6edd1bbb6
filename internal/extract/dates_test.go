package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recifeTZ(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Recife")
	require.NoError(t, err)
	return loc
}

// scrapedAt anchors the relative forms so the tests stay deterministic.
var scrapedAt = time.Date(2026, 8, 10, 15, 0, 0, 0, time.UTC)

func TestParseDatePortugueseForms(t *testing.T) {
	loc := recifeTZ(t)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{
			name: "long form with hour mark",
			in:   "Publicado em 12 de março de 2026, às 14h30",
			want: time.Date(2026, 3, 12, 14, 30, 0, 0, loc),
		},
		{
			name: "long form date only",
			in:   "3 de janeiro de 2026",
			want: time.Date(2026, 1, 3, 0, 0, 0, 0, loc),
		},
		{
			name: "long form unaccented month",
			in:   "12 de marco de 2026",
			want: time.Date(2026, 3, 12, 0, 0, 0, 0, loc),
		},
		{
			name: "brazilian numeric with time",
			in:   "05/08/2026 09:15",
			want: time.Date(2026, 8, 5, 9, 15, 0, 0, loc),
		},
		{
			name: "updated prefix",
			in:   "Atualizado em 05/08/2026",
			want: time.Date(2026, 8, 5, 0, 0, 0, 0, loc),
		},
		{
			name: "iso date",
			in:   "2026-08-05",
			want: time.Date(2026, 8, 5, 0, 0, 0, 0, loc),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.in, loc, scrapedAt)
			require.True(t, ok)
			require.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParseDateRFC3339KeepsOffset(t *testing.T) {
	got, ok := ParseDate("2026-08-05T10:00:00-03:00", recifeTZ(t), scrapedAt)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 8, 5, 13, 0, 0, 0, time.UTC).Unix(), got.Unix())
}

func TestParseDateRelativeForms(t *testing.T) {
	loc := recifeTZ(t)

	// 15:00 UTC is 12:00 in Recife, so "hoje" and "ontem" resolve to the
	// local calendar days of the scrape.
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{
			name: "today bare",
			in:   "Hoje",
			want: time.Date(2026, 8, 10, 0, 0, 0, 0, loc),
		},
		{
			name: "today with hour mark",
			in:   "Hoje, 22h10",
			want: time.Date(2026, 8, 10, 22, 10, 0, 0, loc),
		},
		{
			name: "yesterday with time",
			in:   "Ontem às 14h30",
			want: time.Date(2026, 8, 9, 14, 30, 0, 0, loc),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.in, loc, scrapedAt)
			require.True(t, ok)
			require.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	loc := recifeTZ(t)
	for _, in := range []string{"", "há 2 horas", "ontem mesmo", "35/13/2026"} {
		_, ok := ParseDate(in, loc, scrapedAt)
		require.False(t, ok, "input %q", in)
	}
}

func TestCleanText(t *testing.T) {
	in := "Primeiro   parágrafo .\n\n\n\nSegundo\tparágrafo ,  com espaços"
	got := CleanText(in)
	require.Equal(t, "Primeiro parágrafo.\n\nSegundo parágrafo, com espaços", got)
}
