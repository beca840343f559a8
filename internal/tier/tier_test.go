// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tier

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

func testSetup(t *testing.T) (*Engine, graph.Store) {
	t.Helper()
	store, err := graph.NewSQLite(filepath.Join(t.TempDir(), "graph.db"), graph.Options{})
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close(context.Background()) })
	return New(store, nil), store
}

func createConcept(t *testing.T, store graph.Store, name string, tier types.Tier, words int) string {
	t.Helper()
	id, err := store.CreateEntity(context.Background(), &types.Entity{
		Type:        types.EntityConcept,
		Name:        name,
		Description: strings.TrimSpace(strings.Repeat("word ", words)),
		Tier:        tier,
	})
	if err != nil {
		t.Fatalf("CreateEntity(%s): %v", name, err)
	}
	return id
}

func TestRetrieveExactAndCumulative(t *testing.T) {
	e, store := testSetup(t)
	ctx := context.Background()

	createConcept(t, store, "core", types.TierL1, 120)
	createConcept(t, store, "functional", types.TierL2, 600)
	createConcept(t, store, "complete", types.TierL3, 2100)

	exact, err := e.Retrieve(ctx, RetrieveOptions{Level: types.TierL2})
	if err != nil {
		t.Fatalf("Retrieve exact: %v", err)
	}
	if len(exact.Entities) != 1 || exact.Entities[0].Name != "functional" {
		t.Errorf("exact L2 retrieval = %+v", exact.Entities)
	}

	cumulative, err := e.Retrieve(ctx, RetrieveOptions{Level: types.TierL2, Cumulative: true})
	if err != nil {
		t.Fatalf("Retrieve cumulative: %v", err)
	}
	if len(cumulative.Entities) != 2 {
		t.Errorf("cumulative L2 retrieval returned %d entities, want 2", len(cumulative.Entities))
	}
	for _, got := range cumulative.Entities {
		if got.Tier.Rank() > types.TierL2.Rank() {
			t.Errorf("cumulative retrieval leaked %s entity %q", got.Tier, got.Name)
		}
	}

	if _, err := e.Retrieve(ctx, RetrieveOptions{Level: "L7"}); err == nil {
		t.Error("Retrieve accepted an unknown tier")
	}
}

func TestRetrieveTypeFilter(t *testing.T) {
	e, store := testSetup(t)
	ctx := context.Background()

	createConcept(t, store, "entropy", types.TierL1, 100)
	if _, err := store.CreateEntity(ctx, &types.Entity{
		Type: types.EntitySymbol,
		Name: "H",
		Tier: types.TierL1,
		Properties: map[string]any{
			"latex":   "H",
			"context": "information theory",
		},
	}); err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}

	sub, err := e.Retrieve(ctx, RetrieveOptions{
		Level: types.TierL1,
		Types: []types.EntityType{types.EntitySymbol},
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(sub.Entities) != 1 || sub.Entities[0].Type != types.EntitySymbol {
		t.Errorf("typed retrieval = %+v", sub.Entities)
	}
}

func TestPromote(t *testing.T) {
	e, store := testSetup(t)
	ctx := context.Background()

	// 600 words meets the L2 minimum but not L3's.
	id := createConcept(t, store, "entropy", types.TierL1, 600)

	promoted, err := e.Promote(ctx, id, types.TierL2)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if promoted.Tier != types.TierL2 {
		t.Errorf("tier after promote = %s, want L2", promoted.Tier)
	}
	if promoted.Version != 2 {
		t.Errorf("version after promote = %d, want 2", promoted.Version)
	}

	if _, err := e.Promote(ctx, id, types.TierL3); !errors.Is(err, ErrBelowBudget) {
		t.Errorf("Promote to L3 = %v, want ErrBelowBudget", err)
	}

	// Demotion and no-op promotions are refused.
	if _, err := e.Promote(ctx, id, types.TierL1); err == nil {
		t.Error("Promote accepted a demotion")
	}
	if _, err := e.Promote(ctx, id, types.TierL2); err == nil {
		t.Error("Promote accepted the current tier")
	}
}

func TestPromoteMissingEntity(t *testing.T) {
	e, _ := testSetup(t)
	if _, err := e.Promote(context.Background(), "missing", types.TierL2); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("Promote missing entity = %v, want ErrNotFound", err)
	}
}

func TestProfile(t *testing.T) {
	e, store := testSetup(t)
	ctx := context.Background()

	createConcept(t, store, "a", types.TierL1, 100)
	createConcept(t, store, "b", types.TierL1, 100)
	createConcept(t, store, "c", types.TierL2, 500)

	profile, err := e.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if profile[types.EntityConcept][types.TierL1] != 2 {
		t.Errorf("L1 concepts = %d, want 2", profile[types.EntityConcept][types.TierL1])
	}
	if profile[types.EntityConcept][types.TierL2] != 1 {
		t.Errorf("L2 concepts = %d, want 1", profile[types.EntityConcept][types.TierL2])
	}
	if _, ok := profile[types.EntitySymbol]; ok {
		t.Error("profile includes a type with no entities")
	}
}

func TestWordCountAndBudgets(t *testing.T) {
	if n := WordCount("  one two\nthree "); n != 3 {
		t.Errorf("WordCount = %d, want 3", n)
	}
	b, ok := BudgetFor(types.TierL3)
	if !ok || b.Min != 2000 || b.Max != 0 {
		t.Errorf("BudgetFor(L3) = %+v, %v", b, ok)
	}
	if _, ok := BudgetFor("L9"); ok {
		t.Error("BudgetFor accepted an unknown tier")
	}
}
