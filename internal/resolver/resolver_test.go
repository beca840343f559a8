// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

func testSetup(t *testing.T) (*Resolver, graph.Store) {
	t.Helper()
	store, err := graph.NewSQLite(filepath.Join(t.TempDir(), "graph.db"), graph.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(context.Background()) })
	return New(store, nil), store
}

func createSymbol(t *testing.T, store graph.Store, name, latex string) string {
	t.Helper()
	id, err := store.CreateEntity(context.Background(), &types.Entity{
		Type: types.EntitySymbol,
		Name: name,
		Tier: types.TierL1,
		Properties: map[string]any{
			"latex":   latex,
			"context": "test",
		},
	})
	require.NoError(t, err)
	return id
}

func createConcept(t *testing.T, store graph.Store, name string) string {
	t.Helper()
	id, err := store.CreateEntity(context.Background(), &types.Entity{
		Type: types.EntityConcept,
		Name: name,
		Tier: types.TierL1,
	})
	require.NoError(t, err)
	return id
}

func TestBindAndTraverse(t *testing.T) {
	r, store := testSetup(t)
	ctx := context.Background()

	// Sigma is overloaded: standard deviation in statistics, a permutation
	// in group theory. Both bindings coexist.
	sigma := createSymbol(t, store, "sigma", `\sigma`)
	stddev := createConcept(t, store, "standard deviation")
	perm := createConcept(t, store, "permutation")

	_, err := r.Bind(ctx, sigma, stddev, "statistics", 0.95)
	require.NoError(t, err)
	_, err = r.Bind(ctx, sigma, perm, "group theory", 0.9)
	require.NoError(t, err)

	concepts, err := r.ConceptsFor(ctx, sigma)
	require.NoError(t, err)
	assert.Len(t, concepts, 2)

	symbols, err := r.SymbolsFor(ctx, stddev)
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, "sigma", symbols[0].Name)
}

func TestBindRejectsWrongTypes(t *testing.T) {
	r, store := testSetup(t)
	ctx := context.Background()

	c1 := createConcept(t, store, "entropy")
	c2 := createConcept(t, store, "information")

	_, err := r.Bind(ctx, c1, c2, "nope", 0.5)
	assert.Error(t, err, "Bind must reject a Concept as the symbol side")

	sym := createSymbol(t, store, "H", "H")
	_, err = r.Bind(ctx, sym, c1, "information theory", 1.5)
	assert.Error(t, err, "Bind must reject confidence above 1")
}

func TestRecordConflict(t *testing.T) {
	r, store := testSetup(t)
	ctx := context.Background()

	a := createSymbol(t, store, "sigma-stats", `\sigma`)
	b := createSymbol(t, store, "sigma-group", `\sigma`)

	rel, err := r.RecordConflict(ctx, a, b, "prefer domain context", a, "clash across fields")
	require.NoError(t, err)
	assert.Equal(t, types.RelConflictsWith, rel.Type)
	assert.Equal(t, "prefer domain context", rel.Properties["resolution_strategy"])
	assert.Equal(t, a, rel.Properties["canonical_choice"])

	conflicts, err := r.Conflicts(ctx, b)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)

	// Missing strategy is rejected by validation.
	_, err = r.RecordConflict(ctx, a, b, "", "", "")
	assert.Error(t, err)
}

func TestInterpret(t *testing.T) {
	r, store := testSetup(t)
	ctx := context.Background()

	sym := createSymbol(t, store, "beta", `\beta`)
	domID, err := store.CreateEntity(ctx, &types.Entity{
		Type: types.EntityDomain,
		Name: "thermodynamics",
		Tier: types.TierL1,
	})
	require.NoError(t, err)

	rel, err := r.Interpret(ctx, sym, domID, "inverse temperature", "1/K")
	require.NoError(t, err)
	assert.Equal(t, "inverse temperature", rel.Properties["meaning"])
	assert.Equal(t, "1/K", rel.Properties["units"])

	// Interpretations land only on Domain targets.
	other := createConcept(t, store, "regression coefficient")
	_, err = r.Interpret(ctx, sym, other, "slope", "")
	assert.Error(t, err)
}

func TestAudit(t *testing.T) {
	r, store := testSetup(t)
	ctx := context.Background()

	bound := createSymbol(t, store, "alpha", `\alpha`)
	unbound := createSymbol(t, store, "xi", `\xi`)
	concept := createConcept(t, store, "learning rate")

	_, err := r.Bind(ctx, bound, concept, "optimization", 0.9)
	require.NoError(t, err)

	report, err := r.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Unbound, 1)
	assert.Equal(t, unbound, report.Unbound[0].ID)
}

func TestAuditEmptyGraph(t *testing.T) {
	r, _ := testSetup(t)

	report, err := r.Audit(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
	assert.Empty(t, report.Unbound)
}
