// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Create, read, update, and delete entities",
}

var entityCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an entity",
	Long: `Create an entity of the given type at the given tier. Typed properties
are checked against the entity schema: a Document needs title and authors,
a Symbol needs latex and context. Structured properties (author lists,
keyword lists) go through --props-json.`,
	Example: `  knowledge-engine entity create --type concept --name "entropy" --tier L1 \
      --description "Expected information content of a random variable." \
      --prop domain=information_theory

  knowledge-engine entity create --type document --name "attention-paper" --tier L1 \
      --props-json '{"title": "Attention Is All You Need", "authors": ["Vaswani"]}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		typeName, _ := cmd.Flags().GetString("type")
		entityType, err := types.ParseEntityType(typeName)
		if err != nil {
			return err
		}
		tierName, _ := cmd.Flags().GetString("tier")
		entityTier, err := types.ParseTier(tierName)
		if err != nil {
			return err
		}

		pairs, _ := cmd.Flags().GetStringArray("prop")
		jsonProps, _ := cmd.Flags().GetString("props-json")
		props, err := parseProps(pairs, jsonProps)
		if err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		entity := &types.Entity{
			Type:        entityType,
			Name:        name,
			Description: description,
			Tier:        entityTier,
			Properties:  props,
		}

		source, _ := cmd.Flags().GetString("source")
		extractor, _ := cmd.Flags().GetString("extractor")
		if source != "" {
			entity.Provenance = &types.Provenance{Source: source, Extractor: extractor}
		}

		id, err := store.CreateEntity(cmd.Context(), entity)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var entityGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		entity, err := store.GetEntity(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(entity)
		}
		printEntity(entity)
		return nil
	},
}

var entityUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an entity's fields and properties",
	Long: `Update an entity. --name, --description, and --tier change the core
fields; --prop and --props-json change typed properties. Each update bumps
the entity's version.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		pairs, _ := cmd.Flags().GetStringArray("prop")
		jsonProps, _ := cmd.Flags().GetString("props-json")
		updates, err := parseProps(pairs, jsonProps)
		if err != nil {
			return err
		}
		if updates == nil {
			updates = map[string]any{}
		}

		if cmd.Flags().Changed("name") {
			updates["name"], _ = cmd.Flags().GetString("name")
		}
		if cmd.Flags().Changed("description") {
			updates["description"], _ = cmd.Flags().GetString("description")
		}
		if cmd.Flags().Changed("tier") {
			tierName, _ := cmd.Flags().GetString("tier")
			entityTier, err := types.ParseTier(tierName)
			if err != nil {
				return err
			}
			updates["tier"] = string(entityTier)
		}
		if len(updates) == 0 {
			return errors.New("nothing to update")
		}

		entity, err := store.UpdateEntity(cmd.Context(), args[0], updates)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(entity)
		}
		printEntity(entity)
		return nil
	},
}

var entityDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an entity",
	Long: `Delete an entity. An entity that still has relationships is refused
unless --detach is given, which removes its relationships too.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		detach, _ := cmd.Flags().GetBool("detach")
		if err := store.DeleteEntity(cmd.Context(), args[0], detach); err != nil {
			if errors.Is(err, graph.ErrHasRelationships) {
				return fmt.Errorf("%w; pass --detach to delete them too", err)
			}
			return err
		}
		fmt.Println("deleted", args[0])
		return nil
	},
}

var entitySimilarCmd = &cobra.Command{
	Use:   "similar <id>",
	Short: "Find entities resembling this one",
	Long: `Similar scores every entity of the same type against the given one:
name and description resemblance, tier equality, and shared relationships.
Useful for spotting near-duplicate concepts before binding symbols to them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		minScore, _ := cmd.Flags().GetFloat64("min-score")
		limit, _ := cmd.Flags().GetInt("limit")

		hits, err := store.Similar(cmd.Context(), args[0], minScore, limit)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(hits)
		}
		for _, hit := range hits {
			fmt.Printf("%.3f  %-36s  %-14s  %s\n", hit.Score, hit.Entity.ID, hit.Entity.Type, hit.Entity.Name)
		}
		return nil
	},
}

var entityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		opts := graph.ListOptions{}
		if typeName, _ := cmd.Flags().GetString("type"); typeName != "" {
			opts.Type, err = types.ParseEntityType(typeName)
			if err != nil {
				return err
			}
		}
		if tierName, _ := cmd.Flags().GetString("tier"); tierName != "" {
			opts.Tier, err = types.ParseTier(tierName)
			if err != nil {
				return err
			}
		}
		opts.Skip, _ = cmd.Flags().GetInt("skip")
		opts.Limit, _ = cmd.Flags().GetInt("limit")

		entities, total, err := store.ListEntities(cmd.Context(), opts)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(map[string]any{"entities": entities, "total": total})
		}
		printEntityTable(entities)
		fmt.Printf("%d of %d entities\n", len(entities), total)
		return nil
	},
}

func init() {
	entityCreateCmd.Flags().String("type", "", "entity type: document, concept, symbol, algorithm, implementation, or domain")
	entityCreateCmd.Flags().String("name", "", "entity name")
	entityCreateCmd.Flags().String("description", "", "entity description")
	entityCreateCmd.Flags().String("tier", "L1", "detail tier: L1, L2, or L3")
	entityCreateCmd.Flags().StringArray("prop", nil, "property as key=value (repeatable)")
	entityCreateCmd.Flags().String("props-json", "", "properties as a JSON object")
	entityCreateCmd.Flags().String("source", "", "provenance source (DOI, URL, or document id)")
	entityCreateCmd.Flags().String("extractor", "manual", "provenance extractor")
	entityCreateCmd.MarkFlagRequired("type")
	entityCreateCmd.MarkFlagRequired("name")

	entityGetCmd.Flags().Bool("json", false, "output JSON")

	entityUpdateCmd.Flags().String("name", "", "new name")
	entityUpdateCmd.Flags().String("description", "", "new description")
	entityUpdateCmd.Flags().String("tier", "", "new tier")
	entityUpdateCmd.Flags().StringArray("prop", nil, "property as key=value (repeatable)")
	entityUpdateCmd.Flags().String("props-json", "", "properties as a JSON object")
	entityUpdateCmd.Flags().Bool("json", false, "output JSON")

	entityDeleteCmd.Flags().Bool("detach", false, "delete the entity's relationships too")

	entitySimilarCmd.Flags().Float64("min-score", 0.5, "minimum similarity score in [0, 1]")
	entitySimilarCmd.Flags().Int("limit", 0, "maximum results")
	entitySimilarCmd.Flags().Bool("json", false, "output JSON")

	entityListCmd.Flags().String("type", "", "filter by entity type")
	entityListCmd.Flags().String("tier", "", "filter by tier")
	entityListCmd.Flags().Int("skip", 0, "results to skip")
	entityListCmd.Flags().Int("limit", 0, "maximum results")
	entityListCmd.Flags().Bool("json", false, "output JSON")

	entityCmd.AddCommand(entityCreateCmd)
	entityCmd.AddCommand(entityGetCmd)
	entityCmd.AddCommand(entityUpdateCmd)
	entityCmd.AddCommand(entityDeleteCmd)
	entityCmd.AddCommand(entitySimilarCmd)
	entityCmd.AddCommand(entityListCmd)
	rootCmd.AddCommand(entityCmd)
}
