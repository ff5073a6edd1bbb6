package render

import (
	"context"
	"errors"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// Noop implements ingest.Renderer but always returns an error, for
// deployments where the headless browser is disabled.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render returns an error since no browser is available.
func (Noop) Render(_ context.Context, _ string) (ingest.FetchAttempt, error) {
	return ingest.FetchAttempt{}, errors.New("headless renderer not configured")
}
