// Package quality rejects extracted content that fails minimum thresholds
// before anything is persisted or published.
package quality

import (
	"fmt"

	"github.com/farolnews/farol-ingest/internal/extract"
	"github.com/farolnews/farol-ingest/internal/ingest"
)

// Gate applies the acceptance thresholds of one source.
type Gate struct{}

// NewGate builds a Gate.
func NewGate() *Gate {
	return &Gate{}
}

// Check returns a QualityError describing the first failed threshold, or nil
// when the content is acceptable. A rejection is an expected outcome recorded
// in run statistics, never a pipeline failure.
func (g *Gate) Check(source ingest.Source, content extract.Content) error {
	if len(content.Text) < source.MinContentLen {
		return &ingest.QualityError{
			Reason: ingest.ReasonQualityLength,
			Detail: fmt.Sprintf("text length %d below minimum %d", len(content.Text), source.MinContentLen),
		}
	}
	if content.PublishedAt == nil {
		return &ingest.QualityError{
			Reason: ingest.ReasonQualityDate,
			Detail: "no plausible publication timestamp",
		}
	}
	expected := source.ExpectedLanguage
	if expected == "" {
		expected = "pt"
	}
	if detected := DetectLanguage(content.Text); detected != "" && detected != expected {
		return &ingest.QualityError{
			Reason: ingest.ReasonQualityLanguage,
			Detail: fmt.Sprintf("detected language %q, expected %q", detected, expected),
		}
	}
	return nil
}
