// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/knowledge-engine/internal/resolver"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Manage symbol-to-concept bindings",
	Long: `Resolve manages the separation between notation and meaning. A Symbol
binds to the Concepts it represents, conflicting uses of the same notation
are recorded explicitly, and domain-specific readings attach through
interpretations. "resolve audit" finds symbols nothing binds.`,
}

var resolveBindCmd = &cobra.Command{
	Use:   "bind <symbol-id> <concept-id>",
	Short: "Bind a symbol to a concept it represents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		usageContext, _ := cmd.Flags().GetString("context")
		confidence, _ := cmd.Flags().GetFloat64("confidence")

		rel, err := resolver.New(store, log).Bind(cmd.Context(), args[0], args[1], usageContext, confidence)
		if err != nil {
			return err
		}
		fmt.Println(rel.ID)
		return nil
	},
}

var resolveConceptsCmd = &cobra.Command{
	Use:   "concepts <symbol-id>",
	Short: "List the concepts a symbol represents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		concepts, err := resolver.New(store, log).ConceptsFor(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(concepts)
		}
		printEntityTable(concepts)
		return nil
	},
}

var resolveSymbolsCmd = &cobra.Command{
	Use:   "symbols <concept-id>",
	Short: "List the symbols that represent a concept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		symbols, err := resolver.New(store, log).SymbolsFor(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(symbols)
		}
		printEntityTable(symbols)
		return nil
	},
}

var resolveConflictCmd = &cobra.Command{
	Use:   "conflict <id-a> <id-b>",
	Short: "Record a notation conflict between two symbols or concepts",
	Example: `  knowledge-engine resolve conflict <sigma-stddev> <sigma-sigmoid> \
      --strategy context_dependent --notes "reading depends on field"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		strategy, _ := cmd.Flags().GetString("strategy")
		canonical, _ := cmd.Flags().GetString("canonical")
		notes, _ := cmd.Flags().GetString("notes")

		rel, err := resolver.New(store, log).RecordConflict(cmd.Context(), args[0], args[1], strategy, canonical, notes)
		if err != nil {
			return err
		}
		fmt.Println(rel.ID)
		return nil
	},
}

var resolveInterpretCmd = &cobra.Command{
	Use:   "interpret <entity-id> <domain-id>",
	Short: "Record what an entity means inside a domain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		meaning, _ := cmd.Flags().GetString("meaning")
		units, _ := cmd.Flags().GetString("units")

		rel, err := resolver.New(store, log).Interpret(cmd.Context(), args[0], args[1], meaning, units)
		if err != nil {
			return err
		}
		fmt.Println(rel.ID)
		return nil
	},
}

var resolveAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Find symbols not bound to any concept",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		report, err := resolver.New(store, log).Audit(cmd.Context())
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(report)
		}
		printEntityTable(report.Unbound)
		fmt.Printf("%d symbols checked, %d unbound\n", report.Checked, len(report.Unbound))
		return nil
	},
}

func init() {
	resolveBindCmd.Flags().String("context", "", "where this binding applies, e.g. a field or paper")
	resolveBindCmd.Flags().Float64("confidence", 1.0, "binding confidence in [0, 1]")
	resolveBindCmd.MarkFlagRequired("context")

	resolveConceptsCmd.Flags().Bool("json", false, "output JSON")
	resolveSymbolsCmd.Flags().Bool("json", false, "output JSON")

	resolveConflictCmd.Flags().String("strategy", "", "resolution strategy, e.g. context_dependent or prefer_canonical")
	resolveConflictCmd.Flags().String("canonical", "", "id of the preferred entity, if any")
	resolveConflictCmd.Flags().String("notes", "", "free-form notes on the conflict")
	resolveConflictCmd.MarkFlagRequired("strategy")

	resolveInterpretCmd.Flags().String("meaning", "", "what the entity means in this domain")
	resolveInterpretCmd.Flags().String("units", "", "units the entity carries in this domain, if any")
	resolveInterpretCmd.MarkFlagRequired("meaning")

	resolveAuditCmd.Flags().Bool("json", false, "output JSON")

	resolveCmd.AddCommand(resolveBindCmd)
	resolveCmd.AddCommand(resolveConceptsCmd)
	resolveCmd.AddCommand(resolveSymbolsCmd)
	resolveCmd.AddCommand(resolveConflictCmd)
	resolveCmd.AddCommand(resolveInterpretCmd)
	resolveCmd.AddCommand(resolveAuditCmd)
	rootCmd.AddCommand(resolveCmd)
}
