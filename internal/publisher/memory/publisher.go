// Package memory contains an in-memory publisher for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// Publisher stores published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []ingest.ArticleIngested
	// FailUntil makes the first N publishes fail, for retry tests.
	FailUntil int
	calls     int
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, event ingest.ArticleIngested) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.FailUntil {
		return "", fmt.Errorf("simulated publish failure %d", p.calls)
	}
	p.events = append(p.events, event)
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns the recorded publishes.
func (p *Publisher) Events() []ingest.ArticleIngested {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ingest.ArticleIngested, len(p.events))
	copy(out, p.events)
	return out
}

// Calls returns the number of publish attempts, including failures.
func (p *Publisher) Calls() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calls
}
