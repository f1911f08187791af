package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"exo-etl/internal/domain"
	"exo-etl/internal/engine"
)

// managedRelations lists every relation the pipeline owns, in build order,
// with its catalog kind.
var managedRelations = []domain.Relation{
	{Name: RawView, Kind: domain.ObjectView},
	{Name: RefinedTable, Kind: domain.ObjectTable},
	{Name: HostDimTable, Kind: domain.ObjectTable},
	{Name: PlanetFactTable, Kind: domain.ObjectTable},
	{Name: HostDimSKTable, Kind: domain.ObjectTable},
	{Name: PlanetFactSKTable, Kind: domain.ObjectTable},
	{Name: ByMethodView, Kind: domain.ObjectView},
	{Name: ByHostView, Kind: domain.ObjectView},
}

// ManagedRelations returns the relations the pipeline owns, in build order.
func ManagedRelations() []domain.Relation {
	out := make([]domain.Relation, len(managedRelations))
	copy(out, managedRelations)
	return out
}

func relationKind(name string) domain.ObjectKind {
	for _, r := range managedRelations {
		if r.Name == name {
			return r.Kind
		}
	}
	return domain.ObjectTable
}

// Runner executes the transformation chain against a DuckDB store, recording
// run history in the metastore.
type Runner struct {
	eng          *engine.Engine
	runs         domain.RunRepository
	artifactsDir string
	logger       *slog.Logger
}

// NewRunner wires a Runner. The engine connection and repository are owned by
// the caller and must outlive the run.
func NewRunner(eng *engine.Engine, runs domain.RunRepository, artifactsDir string, logger *slog.Logger) *Runner {
	return &Runner{eng: eng, runs: runs, artifactsDir: artifactsDir, logger: logger}
}

type stageFunc func(ctx context.Context) (map[string]int64, error)

func (r *Runner) stageFuncs() map[domain.Stage]stageFunc {
	return map[domain.Stage]stageFunc{
		domain.StageRefine:    r.runRefine,
		domain.StageModel:     r.runModel,
		domain.StageAggregate: r.runAggregate,
		domain.StageExport:    r.runExport,
	}
}

// Run executes the stages selected by mode, strictly in chain order, aborting
// on the first failure. The raw source view is (re)bound before any stage so
// every run reads the current input file.
func (r *Runner) Run(ctx context.Context, mode domain.Mode, rawCSV string) (err error) {
	run := &domain.Run{
		ID:        uuid.NewString(),
		Mode:      mode,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if repoErr := r.runs.CreateRun(ctx, run); repoErr != nil {
		return fmt.Errorf("record run: %w", repoErr)
	}
	defer func() {
		status := domain.RunStatusSuccess
		var errMsg *string
		if err != nil {
			status = domain.RunStatusFailed
			msg := err.Error()
			errMsg = &msg
		}
		if repoErr := r.runs.FinishRun(ctx, run.ID, status, errMsg); repoErr != nil {
			r.logger.Error("failed to record run completion", "run_id", run.ID, "error", repoErr)
		}
	}()

	logger := r.logger.With("run_id", run.ID, "mode", mode)
	logger.Info("pipeline run starting")

	if _, statErr := os.Stat(rawCSV); statErr != nil {
		if os.IsNotExist(statErr) {
			return domain.ErrMissingInput("missing raw CSV: %s", rawCSV)
		}
		return fmt.Errorf("stat raw CSV: %w", statErr)
	}

	if bindErr := r.runStage(ctx, run.ID, domain.StageBindSource, func(ctx context.Context) (map[string]int64, error) {
		if err := r.eng.BindCSVView(ctx, RawView, rawCSV); err != nil {
			return nil, err
		}
		logger.Info("raw source bound", "relation", RawView, "path", rawCSV)
		return nil, nil
	}); bindErr != nil {
		return bindErr
	}

	fns := r.stageFuncs()
	for _, stage := range mode.Stages() {
		logger.Info("stage starting", "stage", stage)
		if stageErr := r.runStage(ctx, run.ID, stage, fns[stage]); stageErr != nil {
			return stageErr
		}
	}

	logger.Info("pipeline run complete")
	return nil
}

// runStage executes one stage and records its outcome and row counts.
func (r *Runner) runStage(ctx context.Context, runID string, stage domain.Stage, fn stageFunc) error {
	sr := &domain.StageRun{
		ID:        uuid.NewString(),
		RunID:     runID,
		Stage:     stage,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := r.runs.CreateStageRun(ctx, sr); err != nil {
		return fmt.Errorf("record stage run: %w", err)
	}

	counts, err := fn(ctx)
	if err != nil {
		msg := err.Error()
		if repoErr := r.runs.FinishStageRun(ctx, sr.ID, domain.RunStatusFailed, nil, &msg); repoErr != nil {
			r.logger.Error("failed to record stage failure", "stage", stage, "error", repoErr)
		}
		return err
	}

	if repoErr := r.runs.FinishStageRun(ctx, sr.ID, domain.RunStatusSuccess, counts, nil); repoErr != nil {
		r.logger.Error("failed to record stage completion", "stage", stage, "error", repoErr)
	}
	return nil
}

// requireTable enforces a stage precondition against the catalog.
func (r *Runner) requireTable(ctx context.Context, name, hint string) error {
	ok, err := r.eng.TableExists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrMissingUpstream("missing table %q: %s", name, hint)
	}
	return nil
}

// requireView enforces a stage precondition against the catalog.
func (r *Runner) requireView(ctx context.Context, name, hint string) error {
	ok, err := r.eng.ViewExists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrMissingUpstream("missing view %q: %s", name, hint)
	}
	return nil
}
