// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pdiddy/knowledge-engine/pkg/types"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "graph.db"), Options{})
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func mustCreate(t *testing.T, s *SQLiteStore, e *types.Entity) string {
	t.Helper()
	id, err := s.CreateEntity(context.Background(), e)
	if err != nil {
		t.Fatalf("CreateEntity(%s): %v", e.Name, err)
	}
	return id
}

func symbolEntity(name, latex string) *types.Entity {
	return &types.Entity{
		Type: types.EntitySymbol,
		Name: name,
		Tier: types.TierL1,
		Properties: map[string]any{
			"latex":   latex,
			"context": "test context",
		},
	}
}

func conceptEntity(name string) *types.Entity {
	return &types.Entity{
		Type:        types.EntityConcept,
		Name:        name,
		Description: "a concept used in tests",
		Tier:        types.TierL1,
	}
}

func TestEntityLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id := mustCreate(t, s, symbolEntity("alpha", `\alpha`))
	if id == "" {
		t.Fatal("CreateEntity returned empty ID")
	}

	got, err := s.GetEntity(ctx, id)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got.Name != "alpha" || got.Type != types.EntitySymbol || got.Version != 1 {
		t.Errorf("GetEntity = %+v", got)
	}
	if got.CreatedAt == "" || got.UpdatedAt == "" {
		t.Error("timestamps not assigned on create")
	}

	updated, err := s.UpdateEntity(ctx, id, map[string]any{
		"description": "learning rate",
		"tier":        "L2",
		"meaning":     "step size in gradient descent",
	})
	if err != nil {
		t.Fatalf("UpdateEntity: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("version after update = %d, want 2", updated.Version)
	}
	if updated.Tier != types.TierL2 || updated.Description != "learning rate" {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.Properties["meaning"] != "step size in gradient descent" {
		t.Errorf("property update not applied: %v", updated.Properties)
	}

	if err := s.DeleteEntity(ctx, id, false); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}
	if _, err := s.GetEntity(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEntity after delete = %v, want ErrNotFound", err)
	}
}

func TestCreateEntityValidation(t *testing.T) {
	s := testStore(t)

	bad := &types.Entity{Type: types.EntitySymbol, Name: "alpha", Tier: types.TierL1}
	if _, err := s.CreateEntity(context.Background(), bad); err == nil {
		t.Fatal("CreateEntity accepted a Symbol without latex/context")
	}
}

func TestGetEntityNotFound(t *testing.T) {
	s := testStore(t)
	if _, err := s.GetEntity(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEntity = %v, want ErrNotFound", err)
	}
}

func TestRelationshipLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	symID := mustCreate(t, s, symbolEntity("alpha", `\alpha`))
	conID := mustCreate(t, s, conceptEntity("learning rate"))

	rel := &types.Relationship{
		Type:   types.RelRepresents,
		FromID: symID,
		ToID:   conID,
		Properties: map[string]any{
			"context":    "optimization",
			"confidence": 0.95,
		},
	}
	relID, err := s.CreateRelationship(ctx, rel)
	if err != nil {
		t.Fatalf("CreateRelationship: %v", err)
	}

	got, err := s.GetRelationship(ctx, relID)
	if err != nil {
		t.Fatalf("GetRelationship: %v", err)
	}
	if got.Type != types.RelRepresents || got.FromID != symID || got.ToID != conID {
		t.Errorf("GetRelationship = %+v", got)
	}
	if got.Properties["confidence"] != 0.95 {
		t.Errorf("confidence = %v, want 0.95", got.Properties["confidence"])
	}

	// Entity with edges refuses a plain delete.
	if err := s.DeleteEntity(ctx, symID, false); !errors.Is(err, ErrHasRelationships) {
		t.Errorf("DeleteEntity with edges = %v, want ErrHasRelationships", err)
	}

	if err := s.DeleteRelationship(ctx, relID); err != nil {
		t.Fatalf("DeleteRelationship: %v", err)
	}
	if _, err := s.GetRelationship(ctx, relID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRelationship after delete = %v, want ErrNotFound", err)
	}
	if err := s.DeleteEntity(ctx, symID, false); err != nil {
		t.Fatalf("DeleteEntity after edge removal: %v", err)
	}
}

func TestDetachDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	symID := mustCreate(t, s, symbolEntity("alpha", `\alpha`))
	conID := mustCreate(t, s, conceptEntity("learning rate"))
	_, err := s.CreateRelationship(ctx, &types.Relationship{
		Type:   types.RelRepresents,
		FromID: symID,
		ToID:   conID,
		Properties: map[string]any{
			"context":    "optimization",
			"confidence": 0.9,
		},
	})
	if err != nil {
		t.Fatalf("CreateRelationship: %v", err)
	}

	if err := s.DeleteEntity(ctx, symID, true); err != nil {
		t.Fatalf("DeleteEntity detach: %v", err)
	}
	rels, err := s.Neighbors(ctx, conID, "", types.DirectionBoth)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("edges survived detach delete: %+v", rels)
	}
}

func TestCreateRelationshipRejectsInvalidPair(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	docID := mustCreate(t, s, &types.Entity{
		Type: types.EntityDocument,
		Name: "paper",
		Tier: types.TierL1,
		Properties: map[string]any{
			"title":   "A Paper",
			"authors": []string{"Author"},
		},
	})
	conID := mustCreate(t, s, conceptEntity("entropy"))

	_, err := s.CreateRelationship(ctx, &types.Relationship{
		Type:       types.RelRepresents,
		FromID:     docID,
		ToID:       conID,
		Properties: map[string]any{"context": "x", "confidence": 0.5},
	})
	if err == nil {
		t.Fatal("CreateRelationship accepted REPRESENTS from Document")
	}
}

func TestNeighborsDirections(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	symID := mustCreate(t, s, symbolEntity("sigma", `\sigma`))
	c1 := mustCreate(t, s, conceptEntity("standard deviation"))
	c2 := mustCreate(t, s, conceptEntity("permutation"))

	for _, to := range []string{c1, c2} {
		if _, err := s.CreateRelationship(ctx, &types.Relationship{
			Type:   types.RelRepresents,
			FromID: symID,
			ToID:   to,
			Properties: map[string]any{
				"context":    "statistics",
				"confidence": 0.8,
			},
		}); err != nil {
			t.Fatalf("CreateRelationship: %v", err)
		}
	}

	out, err := s.Neighbors(ctx, symID, types.RelRepresents, types.DirectionOutgoing)
	if err != nil {
		t.Fatalf("Neighbors outgoing: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("outgoing edges = %d, want 2", len(out))
	}

	in, err := s.Neighbors(ctx, symID, types.RelRepresents, types.DirectionIncoming)
	if err != nil {
		t.Fatalf("Neighbors incoming: %v", err)
	}
	if len(in) != 0 {
		t.Errorf("incoming edges = %d, want 0", len(in))
	}

	both, err := s.Neighbors(ctx, c1, "", types.DirectionBoth)
	if err != nil {
		t.Fatalf("Neighbors both: %v", err)
	}
	if len(both) != 1 {
		t.Errorf("edges at concept = %d, want 1", len(both))
	}
}

func seedQueryFixture(t *testing.T, s *SQLiteStore) (symID, conID string) {
	t.Helper()
	ctx := context.Background()

	symID = mustCreate(t, s, symbolEntity("alpha", `\alpha`))
	conID = mustCreate(t, s, conceptEntity("learning rate"))

	l2 := conceptEntity("entropy")
	l2.Tier = types.TierL2
	l2.Properties = map[string]any{"domain": "information theory"}
	mustCreate(t, s, l2)

	l3 := conceptEntity("free energy")
	l3.Tier = types.TierL3
	mustCreate(t, s, l3)

	if _, err := s.CreateRelationship(ctx, &types.Relationship{
		Type:   types.RelRepresents,
		FromID: symID,
		ToID:   conID,
		Properties: map[string]any{
			"context":    "optimization",
			"confidence": 0.9,
		},
	}); err != nil {
		t.Fatalf("CreateRelationship: %v", err)
	}
	return symID, conID
}

func TestQueryFilters(t *testing.T) {
	s := testStore(t)
	seedQueryFixture(t, s)
	ctx := context.Background()

	tests := []struct {
		name      string
		params    QueryParams
		wantNames []string
	}{
		{
			name:      "by type",
			params:    QueryParams{EntityTypes: []types.EntityType{types.EntitySymbol}},
			wantNames: []string{"alpha"},
		},
		{
			name:      "exact tier",
			params:    QueryParams{Tier: types.TierL2},
			wantNames: []string{"entropy"},
		},
		{
			name:      "cumulative tier",
			params:    QueryParams{Tier: types.TierL2, Cumulative: true},
			wantNames: []string{"alpha", "entropy", "learning rate"},
		},
		{
			name:      "property equality",
			params:    QueryParams{Properties: map[string]any{"domain": "information theory"}},
			wantNames: []string{"entropy"},
		},
		{
			name: "comparison on core field",
			params: QueryParams{
				EntityTypes: []types.EntityType{types.EntityConcept},
				Filters:     []Comparison{{Property: "tier", Op: "!=", Value: "L1"}},
			},
			wantNames: []string{"entropy", "free energy"},
		},
		{
			name:      "substring search",
			params:    QueryParams{Search: "energy"},
			wantNames: []string{"free energy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := s.Query(ctx, tt.params)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			var names []string
			for _, e := range sub.Entities {
				names = append(names, e.Name)
			}
			if len(names) != len(tt.wantNames) {
				t.Fatalf("Query returned %v, want %v", names, tt.wantNames)
			}
			for i, want := range tt.wantNames {
				if names[i] != want {
					t.Errorf("result[%d] = %q, want %q", i, names[i], want)
				}
			}
			if sub.Stats.Total != len(tt.wantNames) {
				t.Errorf("total = %d, want %d", sub.Stats.Total, len(tt.wantNames))
			}
		})
	}
}

func TestQueryPagination(t *testing.T) {
	s := testStore(t)
	seedQueryFixture(t, s)
	ctx := context.Background()

	page, err := s.Query(ctx, QueryParams{Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page.Entities) != 2 {
		t.Fatalf("page size = %d, want 2", len(page.Entities))
	}
	if page.Stats.Total != 4 {
		t.Errorf("total = %d, want 4", page.Stats.Total)
	}

	rest, err := s.Query(ctx, QueryParams{Limit: 10, Skip: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rest.Entities) != 2 {
		t.Errorf("remaining page size = %d, want 2", len(rest.Entities))
	}
}

func TestQueryExpansion(t *testing.T) {
	s := testStore(t)
	symID, conID := seedQueryFixture(t, s)
	ctx := context.Background()

	sub, err := s.Query(ctx, QueryParams{
		EntityTypes: []types.EntityType{types.EntitySymbol},
		Expand: []Expansion{{
			Type:      types.RelRepresents,
			Direction: types.DirectionOutgoing,
		}},
	})
	if err != nil {
		t.Fatalf("Query with expansion: %v", err)
	}
	if len(sub.Relationships) != 1 {
		t.Fatalf("expanded relationships = %d, want 1", len(sub.Relationships))
	}
	if sub.Relationships[0].FromID != symID || sub.Relationships[0].ToID != conID {
		t.Errorf("expanded edge = %+v", sub.Relationships[0])
	}

	// The far endpoint rides along with the subgraph.
	found := false
	for _, e := range sub.Entities {
		if e.ID == conID {
			found = true
		}
	}
	if !found {
		t.Error("expansion did not include the far endpoint entity")
	}

	// A target-type filter that matches nothing drops the edge.
	none, err := s.Query(ctx, QueryParams{
		EntityTypes: []types.EntityType{types.EntitySymbol},
		Expand: []Expansion{{
			Type:       types.RelRepresents,
			Direction:  types.DirectionOutgoing,
			TargetType: types.EntityDomain,
		}},
	})
	if err != nil {
		t.Fatalf("Query with target filter: %v", err)
	}
	if len(none.Relationships) != 0 {
		t.Errorf("target-filtered relationships = %d, want 0", len(none.Relationships))
	}
}

func TestSearchFullText(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mustCreate(t, s, conceptEntity("gradient descent"))
	mustCreate(t, s, conceptEntity("stochastic gradient descent"))
	mustCreate(t, s, conceptEntity("entropy"))

	hits, err := s.Search(ctx, "gradient", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}

	// Type filter excludes everything that is not a Symbol.
	hits, err = s.Search(ctx, "gradient", []types.EntityType{types.EntitySymbol}, 10)
	if err != nil {
		t.Fatalf("Search with type filter: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("filtered hits = %d, want 0", len(hits))
	}

	// Updates reach the index through the sync triggers.
	id := mustCreate(t, s, conceptEntity("plain name"))
	if _, err := s.UpdateEntity(ctx, id, map[string]any{"description": "quantum annealing overview"}); err != nil {
		t.Fatalf("UpdateEntity: %v", err)
	}
	hits, err = s.Search(ctx, "annealing", nil, 10)
	if err != nil {
		t.Fatalf("Search after update: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("hits after update = %d, want 1", len(hits))
	}
}

func TestBatchCreate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	entities := []*types.Entity{
		symbolEntity("alpha", `\alpha`),
		symbolEntity("beta", `\beta`),
		conceptEntity("learning rate"),
	}
	if err := s.CreateEntities(ctx, entities); err != nil {
		t.Fatalf("CreateEntities: %v", err)
	}
	_, total, err := s.ListEntities(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if total != 3 {
		t.Errorf("entities after batch = %d, want 3", total)
	}

	rels := []*types.Relationship{
		{
			Type:   types.RelRepresents,
			FromID: entities[0].ID,
			ToID:   entities[2].ID,
			Properties: map[string]any{
				"context":    "optimization",
				"confidence": 0.9,
			},
		},
	}
	if err := s.CreateRelationships(ctx, rels); err != nil {
		t.Fatalf("CreateRelationships: %v", err)
	}

	// A batch with an invalid item rolls back entirely.
	bad := []*types.Entity{
		conceptEntity("valid"),
		{Type: types.EntitySymbol, Name: "broken", Tier: types.TierL1},
	}
	if err := s.CreateEntities(ctx, bad); err == nil {
		t.Fatal("CreateEntities accepted an invalid batch")
	}
	_, total, err = s.ListEntities(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if total != 3 {
		t.Errorf("entities after failed batch = %d, want 3", total)
	}
}

func TestListEntitiesByType(t *testing.T) {
	s := testStore(t)
	seedQueryFixture(t, s)

	entities, total, err := s.ListEntities(context.Background(), ListOptions{Type: types.EntityConcept})
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if total != 3 || len(entities) != 3 {
		t.Errorf("concepts = %d (total %d), want 3", len(entities), total)
	}
	for _, e := range entities {
		if e.Type != types.EntityConcept {
			t.Errorf("unexpected type %s in listing", e.Type)
		}
	}
}

func TestUpdateRelationship(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	symID := mustCreate(t, s, symbolEntity("alpha", `\alpha`))
	conID := mustCreate(t, s, conceptEntity("learning rate"))

	relID, err := s.CreateRelationship(ctx, &types.Relationship{
		Type:   types.RelRepresents,
		FromID: symID,
		ToID:   conID,
		Properties: map[string]any{
			"context":    "optimization",
			"confidence": 0.6,
		},
	})
	if err != nil {
		t.Fatalf("CreateRelationship: %v", err)
	}

	updated, err := s.UpdateRelationship(ctx, relID, map[string]any{
		"confidence": 0.95,
		"notes":      "confirmed against a second source",
	})
	if err != nil {
		t.Fatalf("UpdateRelationship: %v", err)
	}
	if updated.Properties["confidence"] != 0.95 {
		t.Errorf("confidence = %v, want 0.95", updated.Properties["confidence"])
	}

	got, err := s.GetRelationship(ctx, relID)
	if err != nil {
		t.Fatalf("GetRelationship: %v", err)
	}
	if got.Properties["confidence"] != 0.95 || got.Properties["notes"] != "confirmed against a second source" {
		t.Errorf("update not persisted: %v", got.Properties)
	}
	if got.Properties["context"] != "optimization" {
		t.Errorf("untouched property lost: %v", got.Properties)
	}

	// Endpoints and type are immutable.
	if _, err := s.UpdateRelationship(ctx, relID, map[string]any{"to_id": symID}); err == nil {
		t.Error("UpdateRelationship accepted an endpoint change")
	}

	// The merged payload is re-validated.
	if _, err := s.UpdateRelationship(ctx, relID, map[string]any{"confidence": 1.5}); err == nil {
		t.Error("UpdateRelationship accepted confidence outside [0, 1]")
	}

	if _, err := s.UpdateRelationship(ctx, "missing", map[string]any{"notes": "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateRelationship on missing edge = %v, want ErrNotFound", err)
	}
}

func TestUpdateEntityRejectsReservedKeys(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id := mustCreate(t, s, conceptEntity("entropy"))

	for _, key := range []string{"id", "type", "version", "created_at", "provenance_source"} {
		if _, err := s.UpdateEntity(ctx, id, map[string]any{key: "hijacked"}); err == nil {
			t.Errorf("UpdateEntity accepted reserved key %q", key)
		}
	}

	got, err := s.GetEntity(ctx, id)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("version after rejected updates = %d, want 1", got.Version)
	}
	if _, ok := got.Properties["version"]; ok {
		t.Error("reserved key leaked into properties")
	}
}

func TestSimilarEntities(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	desc := "iterative optimization that follows the negative gradient"
	target := mustCreate(t, s, &types.Entity{
		Type: types.EntityConcept, Name: "gradient descent", Description: desc, Tier: types.TierL1,
	})
	near := mustCreate(t, s, &types.Entity{
		Type: types.EntityConcept, Name: "gradient descent method", Description: desc, Tier: types.TierL1,
	})
	mustCreate(t, s, &types.Entity{
		Type: types.EntityConcept, Name: "free energy principle",
		Description: "a unifying account of perception and action", Tier: types.TierL3,
	})
	// A different type never competes, however similar the name.
	mustCreate(t, s, &types.Entity{
		Type: types.EntityDomain, Name: "gradient descent", Description: desc, Tier: types.TierL1,
	})

	hits, err := s.Similar(ctx, target, 0.7, 0)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Similar returned %d hits, want 1: %+v", len(hits), hits)
	}
	if hits[0].Entity.ID != near {
		t.Errorf("best match = %q, want the near-duplicate concept", hits[0].Entity.Name)
	}
	if hits[0].Score < 0.7 || hits[0].Score > 1 {
		t.Errorf("score = %v, want within [0.7, 1]", hits[0].Score)
	}

	if _, err := s.Similar(ctx, "missing", 0.5, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Similar on missing entity = %v, want ErrNotFound", err)
	}
}

func TestSimilarCountsSharedRelationships(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conID := mustCreate(t, s, conceptEntity("learning rate"))
	target := mustCreate(t, s, symbolEntity("alpha", `\alpha`))
	bound := mustCreate(t, s, symbolEntity("alphas", `\alpha_s`))
	unbound := mustCreate(t, s, symbolEntity("alphax", `\alpha_x`))

	for _, symID := range []string{target, bound} {
		if _, err := s.CreateRelationship(ctx, &types.Relationship{
			Type:   types.RelRepresents,
			FromID: symID,
			ToID:   conID,
			Properties: map[string]any{
				"context":    "optimization",
				"confidence": 0.9,
			},
		}); err != nil {
			t.Fatalf("CreateRelationship: %v", err)
		}
	}

	hits, err := s.Similar(ctx, target, 0.5, 0)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Similar returned %d hits, want 2", len(hits))
	}
	if hits[0].Entity.ID != bound || hits[1].Entity.ID != unbound {
		t.Fatalf("order = %q, %q; want the co-bound symbol first", hits[0].Entity.Name, hits[1].Entity.Name)
	}
	// The two candidates differ only in the shared REPRESENTS edge.
	if diff := hits[0].Score - hits[1].Score; diff < 0.19 || diff > 0.21 {
		t.Errorf("shared-relationship contribution = %v, want ~0.2", diff)
	}
}
