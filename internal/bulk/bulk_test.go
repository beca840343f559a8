// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bulk

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

func testStore(t *testing.T) graph.Store {
	t.Helper()
	store, err := graph.NewSQLite(filepath.Join(t.TempDir(), "graph.db"), graph.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Entities: []types.Entity{
			{
				ID:   "sym-1",
				Type: types.EntitySymbol,
				Name: "alpha",
				Tier: types.TierL1,
				Properties: map[string]any{
					"latex":   `\alpha`,
					"context": "optimization",
				},
			},
			{
				ID:   "con-1",
				Type: types.EntityConcept,
				Name: "learning rate",
				Tier: types.TierL1,
			},
		},
		Relationships: []types.Relationship{
			{
				ID:     "rel-1",
				Type:   types.RelRepresents,
				FromID: "sym-1",
				ToID:   "con-1",
				Properties: map[string]any{
					"context":    "optimization",
					"confidence": 0.9,
				},
			},
		},
	}
}

func TestImportSnapshot(t *testing.T) {
	store := testStore(t)
	im := NewImporter(store, 10, nil)

	var progress bytes.Buffer
	summary, err := im.Import(context.Background(), sampleSnapshot(), &progress)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Entities)
	assert.Equal(t, 1, summary.Relationships)
	assert.Zero(t, summary.Failed)
	assert.Contains(t, progress.String(), "imported 2/2 entities")

	got, err := store.GetEntity(context.Background(), "sym-1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)

	rel, err := store.GetRelationship(context.Background(), "rel-1")
	require.NoError(t, err)
	assert.Equal(t, types.RelRepresents, rel.Type)
}

func TestImportIsolatesBadItems(t *testing.T) {
	store := testStore(t)
	im := NewImporter(store, 10, nil)

	snap := sampleSnapshot()
	snap.Entities = append(snap.Entities, types.Entity{
		ID:   "sym-2",
		Type: types.EntitySymbol,
		Name: "broken",
		Tier: types.TierL1,
		// missing required latex/context
	})

	summary, err := im.Import(context.Background(), snap, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Entities, "good items in a failing batch still import")
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "sym-2", summary.Errors[0].ID)
	assert.Contains(t, summary.Errors[0].Reason, "latex")
}

func TestImportFileFormats(t *testing.T) {
	yamlDoc := `
entities:
  - id: con-9
    type: Concept
    name: entropy
    tier: L1
`
	jsonDoc := `{"entities": [{"id": "con-9", "type": "Concept", "name": "entropy", "tier": "L1"}]}`

	tests := []struct {
		name, file, body string
	}{
		{"yaml", "snap.yaml", yamlDoc},
		{"json", "snap.json", jsonDoc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testStore(t)
			im := NewImporter(store, 10, nil)

			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			summary, err := im.ImportFile(context.Background(), path, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, summary.Entities)

			got, err := store.GetEntity(context.Background(), "con-9")
			require.NoError(t, err)
			assert.Equal(t, "entropy", got.Name)
		})
	}
}

func TestImportBatchesRespectBatchSize(t *testing.T) {
	store := testStore(t)
	im := NewImporter(store, 2, nil)

	snap := &Snapshot{}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		snap.Entities = append(snap.Entities, types.Entity{
			Type: types.EntityConcept,
			Name: name,
			Tier: types.TierL1,
		})
	}

	var progress bytes.Buffer
	summary, err := im.Import(context.Background(), snap, &progress)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Entities)
	assert.Equal(t, 3, strings.Count(progress.String(), "entities\n"), "one progress line per batch")
}

func TestExportRoundTrip(t *testing.T) {
	store := testStore(t)
	im := NewImporter(store, 10, nil)
	_, err := im.Import(context.Background(), sampleSnapshot(), nil)
	require.NoError(t, err)

	ex := NewExporter(store, nil)

	var buf bytes.Buffer
	snap, err := ex.Export(context.Background(), graph.QueryParams{}, FormatJSON, &buf)
	require.NoError(t, err)
	assert.Len(t, snap.Entities, 2)
	assert.Len(t, snap.Relationships, 1)

	// Re-import the JSON export into a fresh store.
	fresh := testStore(t)
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	summary, err := NewImporter(fresh, 10, nil).ImportFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Entities)
	assert.Equal(t, 1, summary.Relationships)
	assert.Zero(t, summary.Failed)
}

func TestExportFilterDropsDanglingEdges(t *testing.T) {
	store := testStore(t)
	im := NewImporter(store, 10, nil)
	_, err := im.Import(context.Background(), sampleSnapshot(), nil)
	require.NoError(t, err)

	ex := NewExporter(store, nil)
	var buf bytes.Buffer
	snap, err := ex.Export(context.Background(), graph.QueryParams{
		EntityTypes: []types.EntityType{types.EntitySymbol},
	}, FormatYAML, &buf)
	require.NoError(t, err)

	// The REPRESENTS edge reaches a Concept outside the filter, but the
	// expansion carries the far endpoint along, so the edge survives.
	assert.Len(t, snap.Entities, 2)
	assert.Len(t, snap.Relationships, 1)
	assert.Contains(t, buf.String(), "entities:")
}

func TestCypherStatements(t *testing.T) {
	snap := sampleSnapshot()
	snap.Entities[0].CreatedAt = "2026-01-01T00:00:00Z"
	snap.Entities[0].UpdatedAt = "2026-01-01T00:00:00Z"
	snap.Entities[0].Version = 1

	stmts := CypherStatements(snap)
	require.Len(t, stmts, 3)

	assert.Contains(t, stmts[0], "CREATE (:Entity:Symbol {")
	assert.Contains(t, stmts[0], "id: 'sym-1'")
	assert.Contains(t, stmts[0], `latex: '\\alpha'`)
	assert.Contains(t, stmts[2], "MATCH (a:Entity {id: 'sym-1'}), (b:Entity {id: 'con-1'})")
	assert.Contains(t, stmts[2], "CREATE (a)-[:REPRESENTS {")
	assert.Contains(t, stmts[2], "confidence: 0.9")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"json": FormatJSON, "YAML": FormatYAML, "yml": FormatYAML, "cypher": FormatCypher,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}
