package extract

import (
	"regexp"
	"strings"
)

var (
	spaceBeforePunct = regexp.MustCompile(`\s+([!?.,;:])`)
	multiBlank       = regexp.MustCompile(`\n{3,}`)
)

// CleanText collapses whitespace runs per paragraph, drops empty paragraphs,
// and tightens space left before punctuation by markup removal.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	paragraphs := strings.Split(s, "\n\n")
	cleaned := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.Join(strings.Fields(p), " ")
		if p == "" {
			continue
		}
		cleaned = append(cleaned, p)
	}
	out := strings.Join(cleaned, "\n\n")
	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	out = multiBlank.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
