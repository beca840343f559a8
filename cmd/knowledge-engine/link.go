// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/knowledge-engine/pkg/types"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Create, read, and delete typed relationships",
	Long: `Relationships connect entities with a typed, directed edge. Each type
constrains the endpoint entity types: REPRESENTS goes from a Symbol to a
Concept, CONTAINS from a Document to what it introduces, and so on. Run
"knowledge-engine schema types" for the full list.`,
}

var linkCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a relationship",
	Example: `  knowledge-engine link create --type REPRESENTS --from <symbol-id> --to <concept-id> \
      --prop context="information theory" --prop confidence=0.9`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		typeName, _ := cmd.Flags().GetString("type")
		relType, err := types.ParseRelationshipType(typeName)
		if err != nil {
			return err
		}

		pairs, _ := cmd.Flags().GetStringArray("prop")
		jsonProps, _ := cmd.Flags().GetString("props-json")
		props, err := parseProps(pairs, jsonProps)
		if err != nil {
			return err
		}

		fromID, _ := cmd.Flags().GetString("from")
		toID, _ := cmd.Flags().GetString("to")
		rel := &types.Relationship{
			Type:       relType,
			FromID:     fromID,
			ToID:       toID,
			Properties: props,
		}

		id, err := store.CreateRelationship(cmd.Context(), rel)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var linkGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a relationship",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		rel, err := store.GetRelationship(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(rel)
		}
		printRelationship(rel)
		return nil
	},
}

var linkUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a relationship's properties",
	Long: `Update a relationship's free-form properties. The type and endpoints
are immutable; delete and recreate the link to change those.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		pairs, _ := cmd.Flags().GetStringArray("prop")
		jsonProps, _ := cmd.Flags().GetString("props-json")
		props, err := parseProps(pairs, jsonProps)
		if err != nil {
			return err
		}
		if len(props) == 0 {
			return errors.New("nothing to update")
		}

		rel, err := store.UpdateRelationship(cmd.Context(), args[0], props)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(rel)
		}
		printRelationship(rel)
		return nil
	},
}

var linkDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a relationship",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		if err := store.DeleteRelationship(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("deleted", args[0])
		return nil
	},
}

var linkNeighborsCmd = &cobra.Command{
	Use:   "neighbors <entity-id>",
	Short: "List an entity's relationships",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		var relType types.RelationshipType
		if typeName, _ := cmd.Flags().GetString("type"); typeName != "" {
			relType, err = types.ParseRelationshipType(typeName)
			if err != nil {
				return err
			}
		}

		dirName, _ := cmd.Flags().GetString("direction")
		dir, err := parseDirection(dirName)
		if err != nil {
			return err
		}

		rels, err := store.Neighbors(cmd.Context(), args[0], relType, dir)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(rels)
		}
		for i := range rels {
			r := &rels[i]
			fmt.Printf("%-36s  %-22s  %s -> %s\n", r.ID, r.Type, r.FromID, r.ToID)
		}
		return nil
	},
}

func parseDirection(s string) (types.Direction, error) {
	switch types.Direction(s) {
	case types.DirectionOutgoing, types.DirectionIncoming, types.DirectionBoth:
		return types.Direction(s), nil
	case "":
		return types.DirectionBoth, nil
	default:
		return "", fmt.Errorf("unknown direction %q (expected outgoing, incoming, or both)", s)
	}
}

func init() {
	linkCreateCmd.Flags().String("type", "", "relationship type, e.g. REPRESENTS")
	linkCreateCmd.Flags().String("from", "", "source entity id")
	linkCreateCmd.Flags().String("to", "", "target entity id")
	linkCreateCmd.Flags().StringArray("prop", nil, "property as key=value (repeatable)")
	linkCreateCmd.Flags().String("props-json", "", "properties as a JSON object")
	linkCreateCmd.MarkFlagRequired("type")
	linkCreateCmd.MarkFlagRequired("from")
	linkCreateCmd.MarkFlagRequired("to")

	linkGetCmd.Flags().Bool("json", false, "output JSON")

	linkUpdateCmd.Flags().StringArray("prop", nil, "property as key=value (repeatable)")
	linkUpdateCmd.Flags().String("props-json", "", "properties as a JSON object")
	linkUpdateCmd.Flags().Bool("json", false, "output JSON")

	linkNeighborsCmd.Flags().String("type", "", "filter by relationship type")
	linkNeighborsCmd.Flags().String("direction", "both", "edge direction: outgoing, incoming, or both")
	linkNeighborsCmd.Flags().Bool("json", false, "output JSON")

	linkCmd.AddCommand(linkCreateCmd)
	linkCmd.AddCommand(linkGetCmd)
	linkCmd.AddCommand(linkUpdateCmd)
	linkCmd.AddCommand(linkDeleteCmd)
	linkCmd.AddCommand(linkNeighborsCmd)
	rootCmd.AddCommand(linkCmd)
}
