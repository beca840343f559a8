// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/internal/schema"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// newLogger builds a zap logger at the configured level. Logs go to stderr
// so command output on stdout stays parseable.
func newLogger() *zap.Logger {
	level, err := zapcore.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		level = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// openStore builds the configured graph store. Flags override config, which
// overrides defaults. The caller closes the store.
func openStore(cmd *cobra.Command) (graph.Store, *zap.Logger, error) {
	log := newLogger()

	backend, _ := cmd.Flags().GetString("backend")
	if backend == "" {
		backend = viper.GetString("store.backend")
	}

	opts := graph.Options{
		Validator:          schema.NewValidator(viper.GetBool("store.schema_validation")),
		Logger:             log,
		MaxResults:         viper.GetInt("store.max_results"),
		SlowQueryThreshold: viper.GetDuration("cache.slow_query_threshold"),
	}

	switch types.StoreBackend(backend) {
	case types.BackendSQLite:
		path, _ := cmd.Flags().GetString("db")
		if path == "" {
			path = viper.GetString("store.path")
		}
		store, err := graph.NewSQLite(path, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store at %s: %w", path, err)
		}
		return store, log, nil

	case types.BackendNeo4j:
		// The query cache only pays off against a networked backend.
		opts.Cache = graph.NewCache(viper.GetInt("cache.max_entries"), viper.GetDuration("cache.ttl"))

		cfg := types.GraphConfig{
			URI:      viper.GetString("graph.uri"),
			Username: viper.GetString("graph.username"),
			Password: secretDefault("neo4j-password", viper.GetString("graph.password")),
			Database: viper.GetString("graph.database"),
		}
		store, err := graph.NewNeo4j(cmd.Context(), cfg, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to neo4j: %w", err)
		}
		return store, log, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q (expected neo4j or sqlite)", backend)
	}
}
