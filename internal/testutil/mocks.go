// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase.
package testutil

import (
	"context"

	"exo-etl/internal/domain"
)

// MockRunRepo implements domain.RunRepository in memory.
type MockRunRepo struct {
	Runs      []*domain.Run
	StageRuns []*domain.StageRun
}

var _ domain.RunRepository = (*MockRunRepo)(nil)

// CreateRun records the run.
func (m *MockRunRepo) CreateRun(_ context.Context, run *domain.Run) error {
	c := *run
	m.Runs = append(m.Runs, &c)
	return nil
}

// FinishRun updates the recorded run's status.
func (m *MockRunRepo) FinishRun(_ context.Context, id string, status domain.RunStatus, errMsg *string) error {
	for _, run := range m.Runs {
		if run.ID == id {
			run.Status = status
			run.Error = errMsg
		}
	}
	return nil
}

// CreateStageRun records the stage run.
func (m *MockRunRepo) CreateStageRun(_ context.Context, sr *domain.StageRun) error {
	c := *sr
	m.StageRuns = append(m.StageRuns, &c)
	return nil
}

// FinishStageRun updates the recorded stage run.
func (m *MockRunRepo) FinishStageRun(_ context.Context, id string, status domain.RunStatus, rowCounts map[string]int64, errMsg *string) error {
	for _, sr := range m.StageRuns {
		if sr.ID == id {
			sr.Status = status
			sr.RowCounts = rowCounts
			sr.Error = errMsg
		}
	}
	return nil
}

// ListRuns returns the recorded runs, newest first.
func (m *MockRunRepo) ListRuns(_ context.Context, limit int) ([]domain.Run, error) {
	var out []domain.Run
	for i := len(m.Runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, *m.Runs[i])
	}
	return out, nil
}

// ListStageRuns returns the recorded stage runs for a run.
func (m *MockRunRepo) ListStageRuns(_ context.Context, runID string) ([]domain.StageRun, error) {
	var out []domain.StageRun
	for _, sr := range m.StageRuns {
		if sr.RunID == runID {
			out = append(out, *sr)
		}
	}
	return out, nil
}

// LastRun returns the most recently created run, or nil if none.
func (m *MockRunRepo) LastRun() *domain.Run {
	if len(m.Runs) == 0 {
		return nil
	}
	return m.Runs[len(m.Runs)-1]
}

// StagesRecorded returns the stage names recorded, in creation order.
func (m *MockRunRepo) StagesRecorded() []domain.Stage {
	out := make([]domain.Stage, 0, len(m.StageRuns))
	for _, sr := range m.StageRuns {
		out = append(out, sr.Stage)
	}
	return out
}
