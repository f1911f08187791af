package pipeline

import (
	"context"
	"fmt"
)

// modelSQL maps each modeled table to its CTAS statement. Statements are
// executed in the build order derived from modelRelations.
var modelSQL = map[string]string{
	// One row per host star; optional attributes reduced with MAX.
	HostDimTable: fmt.Sprintf(`
CREATE TABLE %s AS
SELECT
  hostname,
  MAX(sy_dist)  AS sy_dist,
  MAX(ra)       AS ra,
  MAX(dec)      AS dec,
  MAX(st_teff)  AS st_teff,
  MAX(st_rad)   AS st_rad,
  MAX(st_mass)  AS st_mass
FROM %s
GROUP BY hostname
`, HostDimTable, RefinedTable),

	// Distinct planet observations over a fixed attribute set.
	PlanetFactTable: fmt.Sprintf(`
CREATE TABLE %s AS
SELECT DISTINCT
  pl_name,
  hostname,
  discoverymethod,
  disc_year,
  pl_orbper,
  pl_rade,
  pl_bmasse,
  pl_eqt
FROM %s
`, PlanetFactTable, RefinedTable),

	// Surrogate ids are assigned by ordering host names lexicographically.
	// That ordering is a documented contract: ids are dense, deterministic
	// for a given refined table, and run-scoped — they are reassigned on
	// every rebuild and must not be treated as persistent identifiers.
	HostDimSKTable: fmt.Sprintf(`
CREATE TABLE %s AS
SELECT
  ROW_NUMBER() OVER (ORDER BY hostname) AS host_id,
  hostname,
  sy_dist, ra, dec, st_teff, st_rad, st_mass
FROM %s
`, HostDimSKTable, HostDimTable),

	// CTAS join rather than a declared foreign key; the drop ordering above
	// still treats the reference as FK-equivalent.
	PlanetFactSKTable: fmt.Sprintf(`
CREATE TABLE %s AS
SELECT
  f.pl_name,
  d.host_id,
  f.discoverymethod,
  f.disc_year,
  f.pl_orbper,
  f.pl_rade,
  f.pl_bmasse,
  f.pl_eqt
FROM %s f
JOIN %s d
  ON f.hostname = d.hostname
`, PlanetFactSKTable, PlanetFactTable, HostDimSKTable),
}

// runModel rebuilds the dimension and fact tables from the refined table,
// dropping dependents before their dependencies.
func (r *Runner) runModel(ctx context.Context) (map[string]int64, error) {
	if err := r.requireTable(ctx, RefinedTable, "run the refine stage first"); err != nil {
		return nil, err
	}

	drops, err := dropOrder(modelRelations)
	if err != nil {
		return nil, err
	}
	for _, name := range drops {
		if err := r.eng.DropIfExists(ctx, relationKind(name), name); err != nil {
			return nil, err
		}
	}

	builds, err := buildOrder(modelRelations)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(builds))
	for _, name := range builds {
		if err := r.eng.Exec(ctx, modelSQL[name]); err != nil {
			return nil, fmt.Errorf("build %s: %w", name, err)
		}
		n, err := r.eng.Count(ctx, name)
		if err != nil {
			return nil, err
		}
		counts[name] = n
		r.logger.Info("modeled table rebuilt", "relation", name, "rows", n)
	}

	// Lightweight quality check, reported rather than enforced: the surrogate
	// dimension must carry one row per distinct host name.
	var dimRows, dimKeys int64
	checkSQL := fmt.Sprintf("SELECT COUNT(*), COUNT(DISTINCT hostname) FROM %s", HostDimSKTable)
	if err := r.eng.DB().QueryRowContext(ctx, checkSQL).Scan(&dimRows, &dimKeys); err != nil {
		return nil, fmt.Errorf("surrogate dimension check: %w", err)
	}
	if dimRows == dimKeys {
		r.logger.Info("surrogate dimension uniqueness", "rows", dimRows, "keys", dimKeys)
	} else {
		r.logger.Warn("surrogate dimension has duplicate host names", "rows", dimRows, "keys", dimKeys)
	}

	return counts, nil
}
