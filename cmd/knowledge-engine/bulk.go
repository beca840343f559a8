// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/knowledge-engine/internal/bulk"
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Import and export graph snapshots",
}

var bulkImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import entities and relationships from a snapshot file",
	Long: `Import reads a YAML or JSON snapshot (entities first, then
relationships) and writes it in batches. A failing batch falls back to
per-item writes so one bad item does not sink its neighbors; failures are
reported at the end with their reasons.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		batchSize, _ := cmd.Flags().GetInt("batch-size")
		summary, err := bulk.NewImporter(store, batchSize, log).ImportFile(cmd.Context(), args[0], os.Stderr)
		if err != nil {
			return err
		}

		fmt.Printf("imported %d entities, %d relationships, %d failed\n",
			summary.Entities, summary.Relationships, summary.Failed)
		for _, itemErr := range summary.Errors {
			fmt.Printf("  %s: %s\n", itemErr.ID, itemErr.Reason)
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d items failed", summary.Failed)
		}
		return nil
	},
}

var bulkExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a filtered subgraph",
	Long: `Export writes the entities matching the query filters, plus the
relationships between them, to a file or stdout. Formats: json, yaml, or
cypher (CREATE statements that rebuild the subgraph).`,
	Example: `  knowledge-engine bulk export --format yaml --out snapshot.yaml
  knowledge-engine bulk export --type concept --tier L1 --format cypher`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatName, _ := cmd.Flags().GetString("format")
		format, err := bulk.ParseFormat(formatName)
		if err != nil {
			return err
		}
		params, err := queryParamsFromFlags(cmd)
		if err != nil {
			return err
		}

		out := os.Stdout
		if path, _ := cmd.Flags().GetString("out"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating %s: %w", path, err)
			}
			defer f.Close()
			out = f
		}

		store, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		snap, err := bulk.NewExporter(store, log).Export(cmd.Context(), params, format, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "exported %d entities, %d relationships\n",
			len(snap.Entities), len(snap.Relationships))
		return nil
	},
}

func init() {
	bulkImportCmd.Flags().Int("batch-size", 0, "entities per transaction (default 100)")

	bulkExportCmd.Flags().String("format", "json", "output format: json, yaml, or cypher")
	bulkExportCmd.Flags().String("out", "", "output file (default stdout)")
	bulkExportCmd.Flags().StringSlice("type", nil, "entity types to export (repeatable or comma-separated)")
	bulkExportCmd.Flags().StringArray("prop", nil, "exact property match as key=value (repeatable)")
	bulkExportCmd.Flags().StringArray("filter", nil, `comparison filter as "property op value" (repeatable)`)
	bulkExportCmd.Flags().String("tier", "", "detail tier: L1, L2, or L3")
	bulkExportCmd.Flags().Bool("cumulative", false, "include every tier at or below --tier")
	bulkExportCmd.Flags().String("search", "", "substring over names and descriptions")

	bulkCmd.AddCommand(bulkImportCmd)
	bulkCmd.AddCommand(bulkExportCmd)
	rootCmd.AddCommand(bulkCmd)
}
