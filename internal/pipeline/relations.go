// Package pipeline implements the staged bronze/silver/gold transformation
// chain and its orchestration.
package pipeline

import (
	"exo-etl/internal/domain"
)

// Managed relation names inside the DuckDB store.
const (
	RawView           = "raw_ps"
	RefinedTable      = "silver_planet"
	HostDimTable      = "dim_host_full"
	PlanetFactTable   = "fact_planet"
	HostDimSKTable    = "dim_host_sk"
	PlanetFactSKTable = "fact_planet_sk"
	ByMethodView      = "gold_by_discoverymethod"
	ByHostView        = "gold_by_host"
)

// modelRelations declares the modeled tables and the reference edges between
// them. The model stage derives both its drop order (dependents first) and
// its build order from this graph instead of inlining either sequence, so a
// new reference cannot silently break the drop sequencing.
var modelRelations = []domain.Relation{
	{Name: HostDimTable, Kind: domain.ObjectTable},
	{Name: PlanetFactTable, Kind: domain.ObjectTable},
	{Name: HostDimSKTable, Kind: domain.ObjectTable, DependsOn: []string{HostDimTable}},
	{Name: PlanetFactSKTable, Kind: domain.ObjectTable, DependsOn: []string{PlanetFactTable, HostDimSKTable}},
}

// resolveBuildOrder computes a topological ordering of relations using
// Kahn's algorithm, returned as levels of names where everything in a level
// depends only on earlier levels. Returns an error on cycles or unknown
// dependencies.
func resolveBuildOrder(rels []domain.Relation) ([][]string, error) {
	if len(rels) == 0 {
		return nil, nil
	}

	known := make(map[string]struct{}, len(rels))
	inDegree := make(map[string]int, len(rels))
	dependents := make(map[string][]string) // dep name -> relations derived from it

	for _, r := range rels {
		known[r.Name] = struct{}{}
		inDegree[r.Name] = 0
	}

	for _, r := range rels {
		for _, dep := range r.DependsOn {
			if _, ok := known[dep]; !ok {
				return nil, domain.ErrValidation("relation %s depends on unknown relation %s", r.Name, dep)
			}
			if dep == r.Name {
				return nil, domain.ErrValidation("relation %s depends on itself", r.Name)
			}
			dependents[dep] = append(dependents[dep], r.Name)
			inDegree[r.Name]++
		}
	}

	// Seed the first level in declaration order so the output is stable.
	var levels [][]string
	var queue []string
	for _, r := range rels {
		if inDegree[r.Name] == 0 {
			queue = append(queue, r.Name)
		}
	}

	processed := 0
	for len(queue) > 0 {
		level := make([]string, len(queue))
		copy(level, queue)
		levels = append(levels, level)
		processed += len(level)

		var next []string
		for _, name := range queue {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		queue = next
	}

	if processed != len(rels) {
		return nil, domain.ErrValidation("cycle detected in relation dependencies")
	}
	return levels, nil
}

// dropOrder flattens the build levels in reverse so dependents are always
// dropped before the relations they reference.
func dropOrder(rels []domain.Relation) ([]string, error) {
	levels, err := resolveBuildOrder(rels)
	if err != nil {
		return nil, err
	}
	var names []string
	for i := len(levels) - 1; i >= 0; i-- {
		names = append(names, levels[i]...)
	}
	return names, nil
}

// buildOrder flattens the build levels front to back.
func buildOrder(rels []domain.Relation) ([]string, error) {
	levels, err := resolveBuildOrder(rels)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, level := range levels {
		names = append(names, level...)
	}
	return names, nil
}
