package pipeline

import (
	"context"
	"fmt"
)

// Views carry no stored state, so the rebuild is cheap.
var aggregateSQL = map[string]string{
	ByMethodView: fmt.Sprintf(`
CREATE VIEW %s AS
SELECT
  discoverymethod,
  COUNT(*) AS n_planets,
  AVG(pl_rade)   AS avg_radius_earth,
  AVG(pl_bmasse) AS avg_mass_earth,
  MIN(disc_year) AS first_year,
  MAX(disc_year) AS last_year
FROM %s
WHERE discoverymethod IS NOT NULL
GROUP BY discoverymethod
ORDER BY n_planets DESC
`, ByMethodView, PlanetFactSKTable),

	// MAX on distance and coordinates picks a representative value per host;
	// multi-valued source data is collapsed silently. See DESIGN.md.
	ByHostView: fmt.Sprintf(`
CREATE VIEW %s AS
SELECT
  d.hostname,
  COUNT(*) AS n_planets,
  AVG(f.pl_rade)   AS avg_radius_earth,
  AVG(f.pl_bmasse) AS avg_mass_earth,
  MAX(d.sy_dist) AS sy_dist,
  MAX(d.ra) AS ra,
  MAX(d.dec) AS dec
FROM %s f
JOIN %s d
  ON f.host_id = d.host_id
GROUP BY d.hostname
ORDER BY n_planets DESC, avg_radius_earth DESC NULLS LAST
`, ByHostView, PlanetFactSKTable, HostDimSKTable),
}

// aggregateViews is the creation order of the gold views.
var aggregateViews = []string{ByMethodView, ByHostView}

// runAggregate rebuilds the two gold views over the surrogate-keyed tables.
func (r *Runner) runAggregate(ctx context.Context) (map[string]int64, error) {
	if err := r.requireTable(ctx, PlanetFactSKTable, "run the model stage first"); err != nil {
		return nil, err
	}
	if err := r.requireTable(ctx, HostDimSKTable, "run the model stage first"); err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(aggregateViews))
	for _, name := range aggregateViews {
		if err := r.eng.DropIfExists(ctx, relationKind(name), name); err != nil {
			return nil, err
		}
		if err := r.eng.Exec(ctx, aggregateSQL[name]); err != nil {
			return nil, fmt.Errorf("build %s: %w", name, err)
		}
		n, err := r.eng.Count(ctx, name)
		if err != nil {
			return nil, err
		}
		counts[name] = n
		r.logger.Info("gold view rebuilt", "relation", name, "rows", n)
	}
	return counts, nil
}
