// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/knowledge-engine/internal/enrich"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <document-id>",
	Short: "Fill a document's metadata from OpenAlex",
	Long: `Enrich looks the document's DOI up in OpenAlex and fills the metadata
fields that are still empty: title, authors, year, abstract, and URL.
Fields already set are left alone. The DOI comes from the document's doi
property or its provenance source.

Set --email (or the openalex-email secret) to use the OpenAlex polite
pool, which gets faster and more reliable responses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, log, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())

		email, _ := cmd.Flags().GetString("email")
		cfg := types.EnrichConfig{
			Email: secretDefault("openalex-email", email),
		}
		cfg.UserAgent = viper.GetString("enrich.user_agent")

		entity, err := enrich.New(store, nil, cfg, log).EnrichDocument(cmd.Context(), args[0])
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

func init() {
	enrichCmd.Flags().String("email", "", "contact email for the OpenAlex polite pool")
	enrichCmd.Flags().Bool("json", false, "output JSON")
	rootCmd.AddCommand(enrichCmd)
}
