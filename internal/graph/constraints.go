// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// InitSchema creates the uniqueness constraints and indexes the store relies
// on: per-type id uniqueness, name and tier lookups, and the full-text index
// backing Search. Every statement is idempotent.
func (s *Neo4jStore) InitSchema(ctx context.Context) error {
	var stmts []string
	for _, t := range types.AllEntityTypes() {
		lower := strings.ToLower(string(t))
		stmts = append(stmts,
			fmt.Sprintf("CREATE CONSTRAINT %s_id_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE", lower, t),
			fmt.Sprintf("CREATE INDEX %s_name IF NOT EXISTS FOR (n:%s) ON (n.name)", lower, t),
			fmt.Sprintf("CREATE INDEX %s_tier IF NOT EXISTS FOR (n:%s) ON (n.tier)", lower, t),
			fmt.Sprintf("CREATE INDEX %s_created_at IF NOT EXISTS FOR (n:%s) ON (n.created_at)", lower, t),
		)
	}

	var labels []string
	for _, t := range types.AllEntityTypes() {
		labels = append(labels, string(t))
	}
	stmts = append(stmts, fmt.Sprintf(
		"CREATE FULLTEXT INDEX entity_fulltext IF NOT EXISTS FOR (n:%s) ON EACH [n.name, n.description]",
		strings.Join(labels, "|")))

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range stmts {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("applying schema statement %q: %w", stmt, err)
		}
	}

	s.log.Info("schema initialized", zap.Int("statements", len(stmts)))
	return nil
}
