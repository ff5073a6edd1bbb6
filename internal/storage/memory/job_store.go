package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// JobStore records run lifecycles in memory.
type JobStore struct {
	mu   sync.RWMutex
	runs map[string]ingest.JobRun
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{runs: make(map[string]ingest.JobRun)}
}

// CreateRun stores a new run in running status.
func (s *JobStore) CreateRun(_ context.Context, run ingest.JobRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return errors.New("run already exists")
	}
	s.runs[run.ID] = run
	return nil
}

// FinalizeRun records the terminal state of a run.
func (s *JobStore) FinalizeRun(_ context.Context, run ingest.JobRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; !exists {
		return errors.New("run not found")
	}
	s.runs[run.ID] = run
	return nil
}

// GetRun fetches a run by ID, for tests and the status command.
func (s *JobStore) GetRun(_ context.Context, runID string) (ingest.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return ingest.JobRun{}, errors.New("run not found")
	}
	return run, nil
}
