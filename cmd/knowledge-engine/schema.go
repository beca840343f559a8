// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/internal/schema"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and initialize the graph schema",
}

var schemaInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create constraints and indexes",
	Long: `Init creates the Neo4j uniqueness constraints, property indexes, and
the full-text index over names and descriptions. Every statement uses
IF NOT EXISTS, so init is safe to re-run. The SQLite backend applies its
schema when the database opens; init is a no-op there.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		neo, ok := store.(*graph.Neo4jStore)
		if !ok {
			fmt.Println("sqlite applies its schema on open; nothing to do")
			return nil
		}
		if err := neo.InitSchema(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("schema initialized")
		return nil
	},
}

var schemaTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List entity types, their properties, and relationship types",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Entity types:")
		for _, entityType := range types.AllEntityTypes() {
			fmt.Printf("  %s\n", entityType)
			spec, ok := schema.SpecFor(entityType)
			if !ok {
				continue
			}
			for _, p := range spec.Required {
				fmt.Printf("    %-16s %-12s required\n", p.Name, p.Kind)
			}
			for _, p := range spec.Optional {
				fmt.Printf("    %-16s %s\n", p.Name, p.Kind)
			}
		}

		fmt.Println("\nRelationship types:")
		for _, relType := range types.AllRelationshipTypes() {
			pairs, ok := schema.PairsFor(relType)
			if !ok || len(pairs) == 0 {
				fmt.Printf("  %-24s any -> any\n", relType)
				continue
			}
			for i, pair := range pairs {
				label := string(relType)
				if i > 0 {
					label = ""
				}
				fmt.Printf("  %-24s %s -> %s\n", label, pair.From, pair.To)
			}
		}
		return nil
	},
}

var schemaPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check backend connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		if err := store.Ping(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaInitCmd)
	schemaCmd.AddCommand(schemaTypesCmd)
	schemaCmd.AddCommand(schemaPingCmd)
	rootCmd.AddCommand(schemaCmd)
}
