// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the graph by type, property, tier, and text",
	Long: `Query combines filters into one subgraph request: entity types,
exact property matches, comparison filters, a tier scope, and a substring
text predicate. --expand pulls matching relationships and their far
endpoints into the result.`,
	Example: `  knowledge-engine query --type concept --tier L1 --cumulative
  knowledge-engine query --type document --filter "year >= 2017" --json
  knowledge-engine query --type symbol --expand "REPRESENTS:outgoing:concept"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := queryParamsFromFlags(cmd)
		if err != nil {
			return err
		}

		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		sub, err := store.Query(cmd.Context(), params)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(sub)
		}
		printSubgraph(sub)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <terms...>",
	Short: "Full-text search over names and descriptions",
	Long: `Search runs the backend's full-text index over entity names and
descriptions and returns scored hits. Against Neo4j this uses the
entity_fulltext index; against SQLite, the FTS5 table.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		entityTypes, err := entityTypesFromFlag(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		hits, err := store.Search(cmd.Context(), strings.Join(args, " "), entityTypes, limit)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(hits)
		}
		for _, hit := range hits {
			fmt.Printf("%8.3f  %-36s  %-14s  %s\n", hit.Score, hit.Entity.ID, hit.Entity.Type, hit.Entity.Name)
		}
		return nil
	},
}

func queryParamsFromFlags(cmd *cobra.Command) (graph.QueryParams, error) {
	params := graph.QueryParams{}

	entityTypes, err := entityTypesFromFlag(cmd)
	if err != nil {
		return params, err
	}
	params.EntityTypes = entityTypes

	pairs, _ := cmd.Flags().GetStringArray("prop")
	params.Properties, err = parseProps(pairs, "")
	if err != nil {
		return params, err
	}

	filters, _ := cmd.Flags().GetStringArray("filter")
	for _, f := range filters {
		cmp, err := parseFilter(f)
		if err != nil {
			return params, err
		}
		params.Filters = append(params.Filters, cmp)
	}

	if tierName, _ := cmd.Flags().GetString("tier"); tierName != "" {
		params.Tier, err = types.ParseTier(tierName)
		if err != nil {
			return params, err
		}
	}
	params.Cumulative, _ = cmd.Flags().GetBool("cumulative")
	params.Search, _ = cmd.Flags().GetString("search")

	expands, _ := cmd.Flags().GetStringArray("expand")
	for _, e := range expands {
		exp, err := parseExpansion(e)
		if err != nil {
			return params, err
		}
		params.Expand = append(params.Expand, exp)
	}

	params.Skip, _ = cmd.Flags().GetInt("skip")
	params.Limit, _ = cmd.Flags().GetInt("limit")
	return params, nil
}

func entityTypesFromFlag(cmd *cobra.Command) ([]types.EntityType, error) {
	names, _ := cmd.Flags().GetStringSlice("type")
	var entityTypes []types.EntityType
	for _, name := range names {
		t, err := types.ParseEntityType(name)
		if err != nil {
			return nil, err
		}
		entityTypes = append(entityTypes, t)
	}
	return entityTypes, nil
}

// parseExpansion parses "TYPE[:direction[:target]]". Every part is optional:
// ":outgoing" expands all outgoing edges.
func parseExpansion(s string) (graph.Expansion, error) {
	parts := strings.SplitN(s, ":", 3)
	exp := graph.Expansion{Direction: types.DirectionBoth}

	if parts[0] != "" {
		relType, err := types.ParseRelationshipType(parts[0])
		if err != nil {
			return exp, err
		}
		exp.Type = relType
	}
	if len(parts) > 1 && parts[1] != "" {
		dir, err := parseDirection(parts[1])
		if err != nil {
			return exp, err
		}
		exp.Direction = dir
	}
	if len(parts) > 2 && parts[2] != "" {
		target, err := types.ParseEntityType(parts[2])
		if err != nil {
			return exp, err
		}
		exp.TargetType = target
	}
	return exp, nil
}

func init() {
	queryCmd.Flags().StringSlice("type", nil, "entity types to match (repeatable or comma-separated)")
	queryCmd.Flags().StringArray("prop", nil, "exact property match as key=value (repeatable)")
	queryCmd.Flags().StringArray("filter", nil, `comparison filter as "property op value" (repeatable)`)
	queryCmd.Flags().String("tier", "", "detail tier: L1, L2, or L3")
	queryCmd.Flags().Bool("cumulative", false, "include every tier at or below --tier")
	queryCmd.Flags().String("search", "", "substring over names and descriptions")
	queryCmd.Flags().StringArray("expand", nil, `relationship expansion as "TYPE[:direction[:target]]" (repeatable)`)
	queryCmd.Flags().Int("skip", 0, "results to skip")
	queryCmd.Flags().Int("limit", 0, "maximum results")
	queryCmd.Flags().Bool("json", false, "output JSON")

	searchCmd.Flags().StringSlice("type", nil, "entity types to match (repeatable or comma-separated)")
	searchCmd.Flags().Int("limit", 0, "maximum results")
	searchCmd.Flags().Bool("json", false, "output JSON")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(searchCmd)
}
