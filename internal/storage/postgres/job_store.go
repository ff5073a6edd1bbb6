package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// JobStore records run lifecycles, one row per run.
type JobStore struct {
	pool dbConn
}

// NewJobStore constructs a store from an existing pool.
func NewJobStore(pool dbConn) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const insertRun = `
INSERT INTO job_runs (
	id, flow_name, source_id, gazetteer_version, status, started_at
) VALUES ($1,$2,$3,$4,$5,$6)`

// CreateRun inserts the run row at start.
func (s *JobStore) CreateRun(ctx context.Context, run ingest.JobRun) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	_, err := s.pool.Exec(ctx, insertRun,
		run.ID,
		run.FlowName,
		run.SourceID,
		run.GazetteerVersion,
		string(run.Status),
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const finalizeRun = `
UPDATE job_runs SET status = $2, ended_at = $3, stats = $4, errors = $5
WHERE id = $1`

// FinalizeRun writes the terminal status, stats and collected errors.
func (s *JobStore) FinalizeRun(ctx context.Context, run ingest.JobRun) error {
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("marshal run stats: %w", err)
	}
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("marshal run errors: %w", err)
	}
	tag, err := s.pool.Exec(ctx, finalizeRun,
		run.ID,
		string(run.Status),
		run.EndedAt,
		statsJSON,
		errorsJSON,
	)
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}
