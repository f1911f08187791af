package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exo-etl/internal/domain"
)

func TestDropOrderModelRelations(t *testing.T) {
	got, err := dropOrder(modelRelations)
	require.NoError(t, err)

	// Dependents strictly before their dependencies: the surrogate fact goes
	// first, the surrogate dimension before both natural-key tables.
	assert.Equal(t, []string{PlanetFactSKTable, HostDimSKTable, HostDimTable, PlanetFactTable}, got)
}

func TestBuildOrderModelRelations(t *testing.T) {
	got, err := buildOrder(modelRelations)
	require.NoError(t, err)

	require.Len(t, got, len(modelRelations))
	pos := make(map[string]int, len(got))
	for i, name := range got {
		pos[name] = i
	}
	for _, rel := range modelRelations {
		for _, dep := range rel.DependsOn {
			assert.Less(t, pos[dep], pos[rel.Name], "%s must be built before %s", dep, rel.Name)
		}
	}
}

func TestResolveBuildOrderErrors(t *testing.T) {
	tests := []struct {
		name string
		rels []domain.Relation
	}{
		{
			name: "cycle",
			rels: []domain.Relation{
				{Name: "a", Kind: domain.ObjectTable, DependsOn: []string{"b"}},
				{Name: "b", Kind: domain.ObjectTable, DependsOn: []string{"a"}},
			},
		},
		{
			name: "unknown_dependency",
			rels: []domain.Relation{
				{Name: "a", Kind: domain.ObjectTable, DependsOn: []string{"nope"}},
			},
		},
		{
			name: "self_dependency",
			rels: []domain.Relation{
				{Name: "a", Kind: domain.ObjectTable, DependsOn: []string{"a"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolveBuildOrder(tt.rels)
			require.Error(t, err)
			assert.ErrorAs(t, err, new(*domain.ValidationError))
		})
	}
}

func TestResolveBuildOrderEmpty(t *testing.T) {
	levels, err := resolveBuildOrder(nil)
	require.NoError(t, err)
	assert.Nil(t, levels)
}
