package gazetteer

import (
	"sort"
	"strings"
	"unicode"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases, strips accents, and collapses every non-alphanumeric
// run into a single space. Both patterns and scanned text go through this, so
// matching is accent- and punctuation-insensitive.
func Normalize(s string) string {
	folded := stripAccents(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(folded))
	lastSpace := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// textMatcher holds the Aho-Corasick automata for city and region names.
// Each pattern is padded with spaces so a hit implies word boundaries on
// both sides.
type textMatcher struct {
	cityMatcher  *ahocorasick.Matcher
	cityPatterns []string
	// pattern index -> indices into the cities slice sharing that name
	cityByPattern map[int][]int
	cities        []City

	regionMatcher  *ahocorasick.Matcher
	regionPatterns []string
	regionByIdx    []string
}

func newTextMatcher(cities []City, regions map[string]string) *textMatcher {
	m := &textMatcher{
		cities:        cities,
		cityByPattern: make(map[int][]int),
	}

	// Distinct normalized names map to every city carrying them.
	nameToCities := make(map[string][]int)
	for i, city := range cities {
		names := append([]string{city.Name}, city.Aliases...)
		seen := make(map[string]struct{}, len(names))
		for _, name := range names {
			key := Normalize(name)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			nameToCities[key] = append(nameToCities[key], i)
		}
	}

	keys := make([]string, 0, len(nameToCities))
	for key := range nameToCities {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		idx := len(m.cityPatterns)
		m.cityPatterns = append(m.cityPatterns, pad(key))
		m.cityByPattern[idx] = nameToCities[key]
	}
	if len(m.cityPatterns) > 0 {
		m.cityMatcher = ahocorasick.NewStringMatcher(m.cityPatterns)
	}

	regionCodes := make([]string, 0, len(regions))
	for code := range regions {
		regionCodes = append(regionCodes, code)
	}
	sort.Strings(regionCodes)
	for _, code := range regionCodes {
		key := Normalize(regions[code])
		if key == "" {
			continue
		}
		m.regionPatterns = append(m.regionPatterns, pad(key))
		m.regionByIdx = append(m.regionByIdx, code)
	}
	if len(m.regionPatterns) > 0 {
		m.regionMatcher = ahocorasick.NewStringMatcher(m.regionPatterns)
	}
	return m
}

func pad(s string) string {
	return " " + s + " "
}

func (m *textMatcher) findCities(text string) []NameMatch {
	if m.cityMatcher == nil {
		return nil
	}
	padded := pad(Normalize(text))
	hits := m.cityMatcher.Match([]byte(padded))
	sort.Ints(hits)

	// A name fully contained in a longer matched name is shadowed by it:
	// "sao jose" inside "sao jose do egito" is not a separate mention.
	shadowed := make(map[int]bool, len(hits))
	for _, a := range hits {
		for _, b := range hits {
			if a == b {
				continue
			}
			if len(m.cityPatterns[a]) < len(m.cityPatterns[b]) &&
				strings.Contains(m.cityPatterns[b], strings.TrimSuffix(m.cityPatterns[a], " ")) {
				shadowed[a] = true
			}
		}
	}

	out := make([]NameMatch, 0, len(hits))
	for _, hit := range hits {
		if shadowed[hit] {
			continue
		}
		indices, ok := m.cityByPattern[hit]
		if !ok {
			continue
		}
		candidates := make([]City, 0, len(indices))
		for _, i := range indices {
			candidates = append(candidates, m.cities[i])
		}
		sort.Slice(candidates, func(a, b int) bool { return candidates[a].Code < candidates[b].Code })
		out = append(out, NameMatch{
			Matched:    strings.TrimSpace(m.cityPatterns[hit]),
			Candidates: candidates,
		})
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].Candidates[0].Code < out[b].Candidates[0].Code
	})
	return out
}

func (m *textMatcher) findRegions(text string) []string {
	if m.regionMatcher == nil {
		return nil
	}
	padded := pad(Normalize(text))
	hits := m.regionMatcher.Match([]byte(padded))
	sort.Ints(hits)
	out := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit < len(m.regionByIdx) {
			out = append(out, m.regionByIdx[hit])
		}
	}
	return out
}
