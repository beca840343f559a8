// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// Format selects the export encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatCypher Format = "cypher"
)

// ParseFormat resolves a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "cypher":
		return FormatCypher, nil
	default:
		return "", fmt.Errorf("unknown export format %q (expected json, yaml, or cypher)", s)
	}
}

// exportLimit caps a single export as a runaway guard.
const exportLimit = 100000

// exportPageSize is the per-query page size while draining the store.
const exportPageSize = 500

// Exporter writes filtered subgraphs out of the store.
type Exporter struct {
	store graph.Store
	log   *zap.Logger
}

// NewExporter returns an Exporter. A nil logger discards logs.
func NewExporter(store graph.Store, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{store: store, log: log}
}

// Export writes the subgraph matching params to w in the given format.
// Relationships between exported entities ride along.
func (ex *Exporter) Export(ctx context.Context, params graph.QueryParams, format Format, w io.Writer) (*Snapshot, error) {
	snap, err := ex.collect(ctx, params)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return nil, fmt.Errorf("encoding JSON export: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(snap); err != nil {
			return nil, fmt.Errorf("encoding YAML export: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding YAML export: %w", err)
		}
	case FormatCypher:
		for _, stmt := range CypherStatements(snap) {
			if _, err := fmt.Fprintln(w, stmt); err != nil {
				return nil, fmt.Errorf("writing Cypher export: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}

	ex.log.Info("export finished",
		zap.Int("entities", len(snap.Entities)),
		zap.Int("relationships", len(snap.Relationships)),
		zap.String("format", string(format)))
	return snap, nil
}

// collect drains every page matching params, expanding the edges between
// matched entities.
func (ex *Exporter) collect(ctx context.Context, params graph.QueryParams) (*Snapshot, error) {
	snap := &Snapshot{}
	seenEntities := map[string]bool{}
	seenRels := map[string]bool{}

	params.Expand = []graph.Expansion{{Direction: types.DirectionOutgoing}}
	params.Limit = exportPageSize

	for skip := params.Skip; ; skip += exportPageSize {
		params.Skip = skip
		sub, err := ex.store.Query(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("collecting export page at %d: %w", skip, err)
		}
		pageMatched := 0
		for _, e := range sub.Entities {
			if !seenEntities[e.ID] {
				seenEntities[e.ID] = true
				snap.Entities = append(snap.Entities, e)
			}
			pageMatched++
		}
		for _, r := range sub.Relationships {
			if !seenRels[r.ID] {
				seenRels[r.ID] = true
				snap.Relationships = append(snap.Relationships, r)
			}
		}
		if len(snap.Entities) > exportLimit {
			return nil, fmt.Errorf("export exceeds %d entities; narrow the query", exportLimit)
		}
		if pageMatched == 0 || skip+exportPageSize >= sub.Stats.Total {
			break
		}
	}

	// Drop edges whose far endpoint fell outside the filter.
	kept := snap.Relationships[:0]
	for _, r := range snap.Relationships {
		if seenEntities[r.FromID] && seenEntities[r.ToID] {
			kept = append(kept, r)
		}
	}
	snap.Relationships = kept
	return snap, nil
}

// CypherStatements renders a snapshot as CREATE statements, suitable for
// replay through cypher-shell.
func CypherStatements(snap *Snapshot) []string {
	stmts := make([]string, 0, len(snap.Entities)+len(snap.Relationships))
	for i := range snap.Entities {
		e := &snap.Entities[i]
		stmts = append(stmts, fmt.Sprintf("CREATE (:Entity:%s %s);", e.Type, cypherProps(entityProps(e))))
	}
	for i := range snap.Relationships {
		r := &snap.Relationships[i]
		stmts = append(stmts, fmt.Sprintf(
			"MATCH (a:Entity {id: %s}), (b:Entity {id: %s}) CREATE (a)-[:%s %s]->(b);",
			cypherString(r.FromID), cypherString(r.ToID), r.Type, cypherProps(relationshipProps(r))))
	}
	return stmts
}

func entityProps(e *types.Entity) map[string]any {
	props := map[string]any{
		"id":          e.ID,
		"name":        e.Name,
		"description": e.Description,
		"tier":        string(e.Tier),
		"version":     e.Version,
		"created_at":  e.CreatedAt,
		"updated_at":  e.UpdatedAt,
	}
	if e.Provenance != nil {
		props["provenance_source"] = e.Provenance.Source
		props["provenance_extractor"] = e.Provenance.Extractor
		props["provenance_recorded_at"] = e.Provenance.RecordedAt
	}
	for k, v := range e.Properties {
		if _, taken := props[k]; !taken {
			props[k] = v
		}
	}
	return props
}

func relationshipProps(r *types.Relationship) map[string]any {
	props := map[string]any{
		"id":         r.ID,
		"created_at": r.CreatedAt,
	}
	for k, v := range r.Properties {
		if _, taken := props[k]; !taken {
			props[k] = v
		}
	}
	return props
}

// cypherProps renders a property map as a Cypher literal with stable key
// order.
func cypherProps(props map[string]any) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(cypherValue(props[k]))
	}
	b.WriteString("}")
	return b.String()
}

func cypherValue(v any) string {
	switch val := v.(type) {
	case string:
		return cypherString(val)
	case bool:
		return fmt.Sprintf("%t", val)
	case int, int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", val), "0"), ".")
	case []string:
		parts := make([]string, len(val))
		for i, s := range val {
			parts[i] = cypherString(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = cypherValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		raw, _ := json.Marshal(val)
		return cypherString(string(raw))
	}
}

// cypherString quotes a string literal, escaping backslashes and quotes.
func cypherString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
