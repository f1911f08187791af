package domain

import (
	"context"
	"time"
)

// Stage identifies one step of the transformation chain.
type Stage string

// The chain is strictly linear: bind-source always runs first, the rest in
// this order as selected by the mode.
const (
	StageBindSource Stage = "bind-source"
	StageRefine     Stage = "refine"
	StageModel      Stage = "model"
	StageAggregate  Stage = "aggregate"
	StageExport     Stage = "export"
)

// Mode selects which stages a run executes.
type Mode string

const (
	ModeRefine    Mode = "refine"
	ModeModel     Mode = "model"
	ModeAggregate Mode = "aggregate"
	ModeExport    Mode = "export"
	ModeAll       Mode = "all"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRefine, ModeModel, ModeAggregate, ModeExport, ModeAll:
		return Mode(s), nil
	default:
		return "", ErrValidation("unsupported mode %q: must be one of refine, model, aggregate, export, all", s)
	}
}

// Stages returns the transformation stages the mode executes, in chain order.
// Bind-source is not included; it precedes every run unconditionally.
func (m Mode) Stages() []Stage {
	switch m {
	case ModeRefine:
		return []Stage{StageRefine}
	case ModeModel:
		return []Stage{StageModel}
	case ModeAggregate:
		return []Stage{StageAggregate}
	case ModeExport:
		return []Stage{StageExport}
	case ModeAll:
		return []Stage{StageRefine, StageModel, StageAggregate, StageExport}
	default:
		return nil
	}
}

// ObjectKind distinguishes catalog object types for the drop/exists helpers.
type ObjectKind string

const (
	ObjectTable ObjectKind = "TABLE"
	ObjectView  ObjectKind = "VIEW"
)

// Relation is a managed table or view with its declared dependencies.
// DependsOn names other relations whose rows this relation is derived from;
// drop ordering is computed from this graph, dependents first.
type Relation struct {
	Name      string
	Kind      ObjectKind
	DependsOn []string
}

// RunStatus is the lifecycle state of a pipeline run or stage run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID         string
	Mode       Mode
	Status     RunStatus
	Error      *string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// StageRun records one stage execution within a run, including the row count
// of each relation the stage rebuilt.
type StageRun struct {
	ID         string
	RunID      string
	Stage      Stage
	Status     RunStatus
	RowCounts  map[string]int64
	Error      *string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// RunRepository persists pipeline run history.
type RunRepository interface {
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, id string, status RunStatus, errMsg *string) error
	CreateStageRun(ctx context.Context, sr *StageRun) error
	FinishStageRun(ctx context.Context, id string, status RunStatus, rowCounts map[string]int64, errMsg *string) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListStageRuns(ctx context.Context, runID string) ([]StageRun, error)
}
