package strategy

import (
	"math"
	"sync"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// Budget caps headless renders within one source's run. The cap is a
// fraction of the candidate count, rounded up so a small batch still gets
// at least one render.
type Budget struct {
	mu   sync.Mutex
	max  int
	used int
}

// NewBudget sizes the budget for a batch of candidates.
func NewBudget(candidates int, fraction float64) *Budget {
	if fraction <= 0 || candidates <= 0 {
		return &Budget{}
	}
	return &Budget{max: int(math.Ceil(float64(candidates) * fraction))}
}

// Take reserves one render, or reports budget exhaustion.
func (b *Budget) Take() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used >= b.max {
		return ingest.ErrBudgetExhausted
	}
	b.used++
	return nil
}

// Used reports how many renders were consumed.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Max reports the render cap.
func (b *Budget) Max() int { return b.max }
