package metastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"exo-etl/internal/domain"
)

// Compile-time check.
var _ domain.RunRepository = (*RunRepo)(nil)

// RunRepo implements domain.RunRepository on the SQLite metastore.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo creates a RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// CreateRun inserts a new pipeline run.
func (r *RunRepo) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (id, mode, status, error, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Mode), string(run.Status), run.Error, run.StartedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun marks a run finished with the given status.
func (r *RunRepo) FinishRun(ctx context.Context, id string, status domain.RunStatus, errMsg *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_runs SET status = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// CreateStageRun inserts a new stage run.
func (r *RunRepo) CreateStageRun(ctx context.Context, sr *domain.StageRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stage_runs (id, run_id, stage, status, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sr.ID, sr.RunID, string(sr.Stage), string(sr.Status), sr.Error, sr.StartedAt)
	if err != nil {
		return fmt.Errorf("insert stage run: %w", err)
	}
	return nil
}

// FinishStageRun marks a stage run finished, storing the per-relation row
// counts as JSON.
func (r *RunRepo) FinishStageRun(ctx context.Context, id string, status domain.RunStatus, rowCounts map[string]int64, errMsg *string) error {
	var countsJSON *string
	if len(rowCounts) > 0 {
		data, err := json.Marshal(rowCounts)
		if err != nil {
			return fmt.Errorf("marshal row counts: %w", err)
		}
		s := string(data)
		countsJSON = &s
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE stage_runs SET status = ?, row_counts = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		string(status), countsJSON, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finish stage run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mode, status, error, started_at, finished_at
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []domain.Run
	for rows.Next() {
		var run domain.Run
		var mode, status string
		if err := rows.Scan(&run.ID, &mode, &status, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Mode = domain.Mode(mode)
		run.Status = domain.RunStatus(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListStageRuns returns the stage runs of a run in execution order.
func (r *RunRepo) ListStageRuns(ctx context.Context, runID string) ([]domain.StageRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, stage, status, row_counts, error, started_at, finished_at
		FROM stage_runs
		WHERE run_id = ?
		ORDER BY started_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stage runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var stageRuns []domain.StageRun
	for rows.Next() {
		var sr domain.StageRun
		var stage, status string
		var countsJSON *string
		if err := rows.Scan(&sr.ID, &sr.RunID, &stage, &status, &countsJSON, &sr.Error, &sr.StartedAt, &sr.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan stage run: %w", err)
		}
		sr.Stage = domain.Stage(stage)
		sr.Status = domain.RunStatus(status)
		if countsJSON != nil {
			if err := json.Unmarshal([]byte(*countsJSON), &sr.RowCounts); err != nil {
				return nil, fmt.Errorf("unmarshal row counts: %w", err)
			}
		}
		stageRuns = append(stageRuns, sr)
	}
	return stageRuns, rows.Err()
}
