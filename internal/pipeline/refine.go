package pipeline

import (
	"context"
	"fmt"
)

// refineSQL projects the raw rows down to the 16 core columns. The filter
// keeps rows whose optional numeric fields are null: unknown is not invalid.
var refineSQL = fmt.Sprintf(`
CREATE TABLE %s AS
SELECT
  pl_name,
  hostname,
  discoverymethod,
  disc_year,
  sy_snum,
  sy_pnum,
  sy_dist,
  ra,
  dec,
  pl_orbper,
  pl_rade,
  pl_bmasse,
  pl_eqt,
  st_teff,
  st_rad,
  st_mass
FROM %s
WHERE pl_name IS NOT NULL
  AND hostname IS NOT NULL
  AND (disc_year IS NULL OR (disc_year BETWEEN 1980 AND 2026))
  AND (pl_rade  IS NULL OR (pl_rade  > 0 AND pl_rade  <= 30))
  AND (pl_bmasse IS NULL OR (pl_bmasse > 0))
`, RefinedTable, RawView)

// runRefine rebuilds the refined table from the raw source view.
func (r *Runner) runRefine(ctx context.Context) (map[string]int64, error) {
	if err := r.requireView(ctx, RawView, "bind the raw source first"); err != nil {
		return nil, err
	}

	if err := r.eng.DropIfExists(ctx, relationKind(RefinedTable), RefinedTable); err != nil {
		return nil, err
	}
	if err := r.eng.Exec(ctx, refineSQL); err != nil {
		return nil, fmt.Errorf("build %s: %w", RefinedTable, err)
	}

	n, err := r.eng.Count(ctx, RefinedTable)
	if err != nil {
		return nil, err
	}
	r.logger.Info("refined table rebuilt", "relation", RefinedTable, "rows", n)
	return map[string]int64{RefinedTable: n}, nil
}
