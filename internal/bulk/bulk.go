// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bulk moves whole subgraphs in and out of the store: batched
// imports from JSON or YAML snapshots, and exports to JSON, YAML, or Cypher
// statements.
package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// defaultBatchSize is the number of items written per transaction.
const defaultBatchSize = 100

// Snapshot is the on-disk document format for imports and exports.
// Relationships reference entities by the IDs carried in the same snapshot.
type Snapshot struct {
	Entities      []types.Entity       `json:"entities" yaml:"entities"`
	Relationships []types.Relationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
}

// ItemError records one item that failed to import.
type ItemError struct {
	// ID is the item's ID or name, whichever identifies it best.
	ID string `json:"id"`

	// Reason is the validation or storage error.
	Reason string `json:"reason"`
}

// Summary reports the outcome of an import.
type Summary struct {
	Entities      int         `json:"entities"`
	Relationships int         `json:"relationships"`
	Failed        int         `json:"failed"`
	Errors        []ItemError `json:"errors,omitempty"`
}

// Importer writes snapshots into a store in batches. When the store supports
// batch transactions, each batch is one transaction; a failing batch falls
// back to item-at-a-time writes so one bad item doesn't sink its batch.
type Importer struct {
	store     graph.Store
	batchSize int
	log       *zap.Logger
}

// NewImporter returns an Importer. batchSize <= 0 selects the default.
func NewImporter(store graph.Store, batchSize int, log *zap.Logger) *Importer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{store: store, batchSize: batchSize, log: log}
}

// ImportFile reads a snapshot from path and imports it. The format follows
// the file extension: .yaml/.yml is YAML, everything else JSON. Progress
// lines go to progress; pass io.Discard to silence them.
func (im *Importer) ImportFile(ctx context.Context, path string, progress io.Writer) (*Summary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}

	var snap Snapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("parsing YAML snapshot %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("parsing JSON snapshot %s: %w", path, err)
		}
	}
	return im.Import(ctx, &snap, progress)
}

// Import writes a snapshot into the store. Entities go first so that
// relationships can resolve their endpoints.
func (im *Importer) Import(ctx context.Context, snap *Snapshot, progress io.Writer) (*Summary, error) {
	if progress == nil {
		progress = io.Discard
	}
	summary := &Summary{}

	batcher, batched := im.store.(graph.BatchStore)

	for start := 0; start < len(snap.Entities); start += im.batchSize {
		end := min(start+im.batchSize, len(snap.Entities))
		batch := make([]*types.Entity, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, &snap.Entities[i])
		}

		if batched {
			if err := batcher.CreateEntities(ctx, batch); err == nil {
				summary.Entities += len(batch)
				fmt.Fprintf(progress, "imported %d/%d entities\n", summary.Entities, len(snap.Entities))
				continue
			}
			// Retry the batch item by item to isolate the failures.
		}
		for _, e := range batch {
			if _, err := im.store.CreateEntity(ctx, e); err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, ItemError{ID: itemID(e.ID, e.Name), Reason: err.Error()})
				continue
			}
			summary.Entities++
		}
		fmt.Fprintf(progress, "imported %d/%d entities\n", summary.Entities, len(snap.Entities))
	}

	for start := 0; start < len(snap.Relationships); start += im.batchSize {
		end := min(start+im.batchSize, len(snap.Relationships))
		batch := make([]*types.Relationship, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, &snap.Relationships[i])
		}

		if batched {
			if err := batcher.CreateRelationships(ctx, batch); err == nil {
				summary.Relationships += len(batch)
				fmt.Fprintf(progress, "imported %d/%d relationships\n", summary.Relationships, len(snap.Relationships))
				continue
			}
		}
		for _, r := range batch {
			if _, err := im.store.CreateRelationship(ctx, r); err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, ItemError{ID: itemID(r.ID, string(r.Type)), Reason: err.Error()})
				continue
			}
			summary.Relationships++
		}
		fmt.Fprintf(progress, "imported %d/%d relationships\n", summary.Relationships, len(snap.Relationships))
	}

	im.log.Info("import finished",
		zap.Int("entities", summary.Entities),
		zap.Int("relationships", summary.Relationships),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func itemID(id, fallback string) string {
	if id != "" {
		return id
	}
	return fallback
}
