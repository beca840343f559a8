// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/knowledge-engine/internal/tier"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

var tierCmd = &cobra.Command{
	Use:   "tier",
	Short: "Tier-scoped retrieval, promotion, and profiling",
	Long: `Every entity sits at a detail tier: L1 holds a 100-200 word core
summary, L2 a 500-1000 word functional explanation, L3 the complete
treatment at 2000+ words. "tier retrieve" reads at a level, "tier promote"
raises an entity once its description meets the target budget, and
"tier profile" shows the distribution.`,
}

var tierRetrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Retrieve entities at a detail level",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		levelName, _ := cmd.Flags().GetString("level")
		level, err := types.ParseTier(levelName)
		if err != nil {
			return err
		}
		entityTypes, err := entityTypesFromFlag(cmd)
		if err != nil {
			return err
		}

		opts := tier.RetrieveOptions{Level: level, Types: entityTypes}
		opts.Cumulative, _ = cmd.Flags().GetBool("cumulative")
		opts.Search, _ = cmd.Flags().GetString("search")
		opts.Skip, _ = cmd.Flags().GetInt("skip")
		opts.Limit, _ = cmd.Flags().GetInt("limit")

		sub, err := tier.New(store, log).Retrieve(cmd.Context(), opts)
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

var tierPromoteCmd = &cobra.Command{
	Use:   "promote <entity-id>",
	Short: "Raise an entity to a higher tier",
	Long: `Promote raises an entity to a higher tier. The entity's description
must already meet the target tier's minimum word budget; the content is
written first, then the tier advertises it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		targetName, _ := cmd.Flags().GetString("to")
		target, err := types.ParseTier(targetName)
		if err != nil {
			return err
		}

		entity, err := tier.New(store, log).Promote(cmd.Context(), args[0], target)
		if err != nil {
			return err
		}
		fmt.Printf("%s promoted to %s\n", entity.ID, entity.Tier)
		return nil
	},
}

var tierProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the tier distribution per entity type",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		profile, err := tier.New(store, log).Profile(cmd.Context())
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(profile)
		}
		for _, entityType := range types.AllEntityTypes() {
			byTier, ok := profile[entityType]
			if !ok {
				continue
			}
			fmt.Printf("%-14s", entityType)
			for _, t := range types.AllTiers() {
				if n, ok := byTier[t]; ok {
					fmt.Printf("  %s: %d", t, n)
				}
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	tierRetrieveCmd.Flags().String("level", "L1", "detail tier: L1, L2, or L3")
	tierRetrieveCmd.Flags().Bool("cumulative", false, "include every tier at or below --level")
	tierRetrieveCmd.Flags().StringSlice("type", nil, "entity types to match (repeatable or comma-separated)")
	tierRetrieveCmd.Flags().String("search", "", "substring over names and descriptions")
	tierRetrieveCmd.Flags().Int("skip", 0, "results to skip")
	tierRetrieveCmd.Flags().Int("limit", 0, "maximum results")
	tierRetrieveCmd.Flags().Bool("json", false, "output JSON")

	tierPromoteCmd.Flags().String("to", "", "target tier: L2 or L3")
	tierPromoteCmd.MarkFlagRequired("to")

	tierProfileCmd.Flags().Bool("json", false, "output JSON")

	tierCmd.AddCommand(tierRetrieveCmd)
	tierCmd.AddCommand(tierPromoteCmd)
	tierCmd.AddCommand(tierProfileCmd)
	rootCmd.AddCommand(tierCmd)
}
