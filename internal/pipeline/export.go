package pipeline

import (
	"context"
	"path/filepath"
)

// runExport materializes the gold views to headered CSV files in the
// artifacts directory, overwriting prior exports.
func (r *Runner) runExport(ctx context.Context) (map[string]int64, error) {
	for _, name := range aggregateViews {
		if err := r.requireView(ctx, name, "run the aggregate stage first"); err != nil {
			return nil, err
		}
	}

	counts := make(map[string]int64, len(aggregateViews))
	for _, name := range aggregateViews {
		out := filepath.Join(r.artifactsDir, name+".csv")
		if err := r.eng.ExportCSV(ctx, name, out); err != nil {
			return nil, err
		}
		n, err := r.eng.Count(ctx, name)
		if err != nil {
			return nil, err
		}
		counts[name] = n
		r.logger.Info("artifact written", "file", out, "rows", n)
	}
	return counts, nil
}
