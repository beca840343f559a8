// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the knowledge-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/knowledge-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, otherwise the secret value for
// key, otherwise empty.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the knowledge-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "knowledge-engine",
	Short: "Graph storage for academic knowledge",
	Long: `knowledge-engine stores academic knowledge as a typed graph: documents,
concepts, symbols, algorithms, implementations, and domains, connected by
typed relationships. Notation (Symbol) and meaning (Concept) are separate
entities, so one symbol can carry several meanings and one meaning several
notations. Every entity sits at a detail tier (L1 core, L2 functional,
L3 complete) and carries provenance back to its source document.

The graph lives in Neo4j (reached over Bolt) or in an embedded SQLite
database for offline work. Select with --backend.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./knowledge-engine.yaml or ~/.config/knowledge-engine/config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "storage backend: neo4j or sqlite (default: sqlite)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default: knowledge/graph.db)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("knowledge-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "knowledge-engine"))
		}
	}

	viper.SetEnvPrefix("KNOWLEDGE_ENGINE")
	viper.AutomaticEnv()

	// The graph settings follow the conventional Neo4j variable names.
	viper.BindEnv("graph.uri", "NEO4J_URI")
	viper.BindEnv("graph.username", "NEO4J_USER")
	viper.BindEnv("graph.password", "NEO4J_PASSWORD")
	viper.BindEnv("graph.database", "NEO4J_DATABASE")
	viper.BindEnv("log_level", "LOG_LEVEL")

	viper.SetDefault("store.backend", "sqlite")
	viper.SetDefault("store.path", filepath.Join("knowledge", "graph.db"))
	viper.SetDefault("store.max_results", 100)
	viper.SetDefault("store.schema_validation", true)
	viper.SetDefault("graph.uri", "bolt://localhost:7687")
	viper.SetDefault("graph.username", "neo4j")
	viper.SetDefault("cache.max_entries", 128)
	viper.SetDefault("cache.ttl", "5m")
	viper.SetDefault("cache.slow_query_threshold", "1s")
	viper.SetDefault("log_level", "info")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
