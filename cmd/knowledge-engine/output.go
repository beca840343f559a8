// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printEntity writes one entity in a readable fixed layout.
func printEntity(e *types.Entity) {
	fmt.Printf("%s  %s  %s\n", e.ID, e.Type, e.Tier)
	fmt.Printf("  name:        %s\n", e.Name)
	if e.Description != "" {
		fmt.Printf("  description: %s\n", truncate(e.Description, 120))
	}
	for _, k := range sortedKeys(e.Properties) {
		fmt.Printf("  %-12s %v\n", k+":", e.Properties[k])
	}
	if e.Provenance != nil {
		fmt.Printf("  provenance:  %s (%s, %s)\n",
			e.Provenance.Source, e.Provenance.Extractor, e.Provenance.RecordedAt)
	}
	fmt.Printf("  version:     %d\n", e.Version)
}

// printEntityTable writes a one-line-per-entity listing.
func printEntityTable(entities []types.Entity) {
	for _, e := range entities {
		fmt.Printf("%-36s  %-14s  %-3s  %s\n", e.ID, e.Type, e.Tier, e.Name)
	}
}

// printRelationship writes one relationship in a readable layout.
func printRelationship(r *types.Relationship) {
	fmt.Printf("%s  %s\n", r.ID, r.Type)
	fmt.Printf("  from: %s\n", r.FromID)
	fmt.Printf("  to:   %s\n", r.ToID)
	for _, k := range sortedKeys(r.Properties) {
		fmt.Printf("  %-5s %v\n", k+":", r.Properties[k])
	}
}

// printSubgraph writes a query result: entities, relationships, and stats.
func printSubgraph(sub *graph.Subgraph) {
	printEntityTable(sub.Entities)
	for i := range sub.Relationships {
		r := &sub.Relationships[i]
		fmt.Printf("%-36s  %-22s  %s -> %s\n", r.ID, r.Type, r.FromID, r.ToID)
	}
	fmt.Printf("%d of %d entities, %d relationships (%s%s)\n",
		sub.Stats.Entities, sub.Stats.Total, sub.Stats.Relationships,
		sub.Stats.Duration.Round(time.Microsecond), cachedSuffix(sub.Stats.Cached))
}

func cachedSuffix(cached bool) string {
	if cached {
		return ", cached"
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseProps merges repeated key=value pairs and an optional JSON object into
// one property map. Plain values are coerced: integers, floats, and booleans
// become typed values, everything else stays a string. Structured values
// (lists, nested objects) go through the JSON form.
func parseProps(pairs []string, jsonProps string) (map[string]any, error) {
	props := map[string]any{}

	if jsonProps != "" {
		if err := json.Unmarshal([]byte(jsonProps), &props); err != nil {
			return nil, fmt.Errorf("parsing --props-json: %w", err)
		}
	}

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid property %q (expected key=value)", pair)
		}
		props[key] = coerceValue(value)
	}

	if len(props) == 0 {
		return nil, nil
	}
	return props, nil
}

func coerceValue(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if s == "true" || s == "false" {
		return s == "true"
	}
	return s
}

// parseFilter parses a comparison of the form "property op value", e.g.
// "year >= 2017".
func parseFilter(s string) (graph.Comparison, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return graph.Comparison{}, fmt.Errorf("invalid filter %q (expected \"property op value\")", s)
	}
	if !graph.ValidOp(fields[1]) {
		return graph.Comparison{}, fmt.Errorf("invalid filter operator %q", fields[1])
	}
	return graph.Comparison{
		Property: fields[0],
		Op:       fields[1],
		Value:    coerceValue(fields[2]),
	}, nil
}
