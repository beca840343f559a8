// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/pdiddy/knowledge-engine/internal/schema"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// Options tune a store independently of the backend.
type Options struct {
	// Validator checks payloads before writes. Nil means validation on.
	Validator *schema.Validator

	// Logger receives structured store logs. Nil discards them.
	Logger *zap.Logger

	// Cache holds read-query results. Nil disables caching.
	Cache *Cache

	// MaxResults caps unpaginated queries (default 100).
	MaxResults int

	// SlowQueryThreshold is the duration above which queries are logged as
	// slow (default 1s).
	SlowQueryThreshold time.Duration
}

func (o *Options) fill() {
	if o.Validator == nil {
		o.Validator = schema.NewValidator(true)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 100
	}
	if o.SlowQueryThreshold <= 0 {
		o.SlowQueryThreshold = time.Second
	}
}

// Neo4jStore is the Bolt-backed Store. Nodes carry an :Entity label plus
// their type label; edges carry the relationship type as their label.
type Neo4jStore struct {
	driver     neo4j.DriverWithContext
	database   string
	validator  *schema.Validator
	cache      *Cache
	log        *zap.Logger
	maxResults int
	slowQuery  time.Duration
	newID      func() string
}

var _ Store = (*Neo4jStore)(nil)
var _ BatchStore = (*Neo4jStore)(nil)

// NewNeo4j connects to the database at cfg.URI and verifies connectivity.
func NewNeo4j(ctx context.Context, cfg types.GraphConfig, opts Options) (*Neo4jStore, error) {
	opts.fill()

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.URI, err)
	}

	opts.Logger.Info("connected to neo4j", zap.String("uri", cfg.URI), zap.String("database", cfg.Database))
	return &Neo4jStore{
		driver:     driver,
		database:   cfg.Database,
		validator:  opts.Validator,
		cache:      opts.Cache,
		log:        opts.Logger,
		maxResults: opts.MaxResults,
		slowQuery:  opts.SlowQueryThreshold,
		newID:      uuid.NewString,
	}, nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

func (s *Neo4jStore) invalidate() {
	if s.cache != nil {
		s.cache.Clear()
	}
}

// CreateEntity persists an entity, assigning ID and timestamps when absent.
func (s *Neo4jStore) CreateEntity(ctx context.Context, e *types.Entity) (string, error) {
	if err := s.validator.ValidateEntity(e); err != nil {
		return "", err
	}
	if err := labelGuard(string(e.Type)); err != nil {
		return "", err
	}
	prepareEntity(e, s.newID)

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := fmt.Sprintf("MERGE (n:Entity:%s {id: $id}) SET n = $props", e.Type)
	if _, err := session.Run(ctx, query, map[string]any{"id": e.ID, "props": flattenEntity(e)}); err != nil {
		return "", fmt.Errorf("creating entity %s: %w", e.ID, err)
	}

	s.invalidate()
	s.log.Debug("entity created",
		zap.String("id", e.ID), zap.String("type", string(e.Type)), zap.String("name", e.Name))
	return e.ID, nil
}

// GetEntity fetches an entity by ID.
func (s *Neo4jStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		"MATCH (n:Entity {id: $id}) RETURN n, labels(n) AS labels", map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("fetching entity %s: %w", id, err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("fetching entity %s: %w", id, err)
		}
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}

	e := entityFromRecord(result.Record(), "n", "labels")
	return &e, nil
}

// UpdateEntity merges props into the entity and bumps its version.
func (s *Neo4jStore) UpdateEntity(ctx context.Context, id string, props map[string]any) (*types.Entity, error) {
	e, err := s.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyUpdate(e, props); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateEntity(e); err != nil {
		return nil, err
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	if _, err := session.Run(ctx,
		"MATCH (n:Entity {id: $id}) SET n = $props",
		map[string]any{"id": id, "props": flattenEntity(e)}); err != nil {
		return nil, fmt.Errorf("updating entity %s: %w", id, err)
	}

	s.invalidate()
	s.log.Debug("entity updated", zap.String("id", id), zap.Int("version", e.Version))
	return e, nil
}

// DeleteEntity removes an entity. Without detach, an entity that still has
// relationships is left in place and ErrHasRelationships is returned.
func (s *Neo4jStore) DeleteEntity(ctx context.Context, id string, detach bool) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		"MATCH (n:Entity {id: $id}) OPTIONAL MATCH (n)-[r]-() RETURN count(r) AS degree",
		map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("deleting entity %s: %w", id, err)
	}
	if !result.Next(ctx) {
		return fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	degree, _ := result.Record().Get("degree")
	if n, ok := degree.(int64); ok && n > 0 && !detach {
		return fmt.Errorf("entity %s has %d relationships: %w", id, n, ErrHasRelationships)
	}

	if _, err := session.Run(ctx,
		"MATCH (n:Entity {id: $id}) DETACH DELETE n", map[string]any{"id": id}); err != nil {
		return fmt.Errorf("deleting entity %s: %w", id, err)
	}

	s.invalidate()
	s.log.Debug("entity deleted", zap.String("id", id), zap.Bool("detach", detach))
	return nil
}

// ListEntities pages through entities matching the options.
func (s *Neo4jStore) ListEntities(ctx context.Context, opts ListOptions) ([]types.Entity, int, error) {
	params := QueryParams{
		Properties: opts.Properties,
		Tier:       opts.Tier,
		Skip:       opts.Skip,
		Limit:      opts.Limit,
	}
	if opts.Type != "" {
		params.EntityTypes = []types.EntityType{opts.Type}
	}
	sub, err := s.Query(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return sub.Entities, sub.Stats.Total, nil
}

// CreateRelationship persists an edge after validating it against the
// endpoint entity types.
func (s *Neo4jStore) CreateRelationship(ctx context.Context, r *types.Relationship) (string, error) {
	from, err := s.GetEntity(ctx, r.FromID)
	if err != nil {
		return "", err
	}
	to, err := s.GetEntity(ctx, r.ToID)
	if err != nil {
		return "", err
	}
	if err := s.validator.ValidateRelationship(r, from.Type, to.Type); err != nil {
		return "", err
	}
	if err := labelGuard(string(r.Type)); err != nil {
		return "", err
	}
	prepareRelationship(r, s.newID)

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := fmt.Sprintf(
		"MATCH (a:Entity {id: $from}), (b:Entity {id: $to}) MERGE (a)-[r:%s {id: $id}]->(b) SET r = $props",
		r.Type)
	if _, err := session.Run(ctx, query, map[string]any{
		"from": r.FromID, "to": r.ToID, "id": r.ID, "props": flattenRelationship(r),
	}); err != nil {
		return "", fmt.Errorf("creating relationship %s: %w", r.ID, err)
	}

	s.invalidate()
	s.log.Debug("relationship created",
		zap.String("id", r.ID), zap.String("type", string(r.Type)),
		zap.String("from", r.FromID), zap.String("to", r.ToID))
	return r.ID, nil
}

// GetRelationship fetches an edge by ID.
func (s *Neo4jStore) GetRelationship(ctx context.Context, id string) (*types.Relationship, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		"MATCH (a:Entity)-[r {id: $id}]->(b:Entity)"+
			" RETURN r, type(r) AS rel_type, a.id AS from_id, b.id AS to_id",
		map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("fetching relationship %s: %w", id, err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("fetching relationship %s: %w", id, err)
		}
		return nil, fmt.Errorf("relationship %s: %w", id, ErrNotFound)
	}

	r := relationshipFromRecord(result.Record())
	return &r, nil
}

// UpdateRelationship merges props into the edge's properties and
// re-validates it against the endpoint entity types.
func (s *Neo4jStore) UpdateRelationship(ctx context.Context, id string, props map[string]any) (*types.Relationship, error) {
	r, err := s.GetRelationship(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyRelationshipUpdate(r, props); err != nil {
		return nil, err
	}
	from, err := s.GetEntity(ctx, r.FromID)
	if err != nil {
		return nil, err
	}
	to, err := s.GetEntity(ctx, r.ToID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateRelationship(r, from.Type, to.Type); err != nil {
		return nil, err
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	if _, err := session.Run(ctx,
		"MATCH ()-[r {id: $id}]->() SET r += $props",
		map[string]any{"id": id, "props": flattenRelationship(r)}); err != nil {
		return nil, fmt.Errorf("updating relationship %s: %w", id, err)
	}

	s.invalidate()
	s.log.Debug("relationship updated", zap.String("id", id))
	return r, nil
}

// DeleteRelationship removes an edge by ID.
func (s *Neo4jStore) DeleteRelationship(ctx context.Context, id string) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		"MATCH ()-[r {id: $id}]-() DELETE r", map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("deleting relationship %s: %w", id, err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return fmt.Errorf("deleting relationship %s: %w", id, err)
	}
	if summary.Counters().RelationshipsDeleted() == 0 {
		return fmt.Errorf("relationship %s: %w", id, ErrNotFound)
	}

	s.invalidate()
	return nil
}

// Neighbors returns the edges touching entityID.
func (s *Neo4jStore) Neighbors(ctx context.Context, entityID string, relType types.RelationshipType, dir types.Direction) ([]types.Relationship, error) {
	q, err := buildNeighborsQuery(entityID, relType, dir)
	if err != nil {
		return nil, err
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, q.text, q.params)
	if err != nil {
		return nil, fmt.Errorf("fetching neighbors of %s: %w", entityID, err)
	}
	var rels []types.Relationship
	for result.Next(ctx) {
		rels = append(rels, relationshipFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("fetching neighbors of %s: %w", entityID, err)
	}
	return rels, nil
}

// Query runs a composite subgraph query, consulting the cache first.
func (s *Neo4jStore) Query(ctx context.Context, params QueryParams) (*Subgraph, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Limit <= 0 {
		params.Limit = s.maxResults
	}

	var key uint64
	if s.cache != nil {
		// fmt sorts map keys, so the rendered params are deterministic.
		key = s.cache.Key(fmt.Sprintf("%+v", params), nil)
		if sub, ok := s.cache.Get(key); ok {
			sub.Stats.Cached = true
			return sub, nil
		}
	}

	start := time.Now()
	match, count, err := buildMatchQuery(params)
	if err != nil {
		return nil, err
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, match.text, match.params)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	sub := &Subgraph{}
	seen := map[string]bool{}
	for result.Next(ctx) {
		e := entityFromRecord(result.Record(), "n", "labels")
		sub.Entities = append(sub.Entities, e)
		seen[e.ID] = true
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}

	countRes, err := session.Run(ctx, count.text, count.params)
	if err != nil {
		return nil, fmt.Errorf("counting query results: %w", err)
	}
	if countRes.Next(ctx) {
		if v, ok := countRes.Record().Get("total"); ok {
			if total, ok := v.(int64); ok {
				sub.Stats.Total = int(total)
			}
		}
	}

	if len(params.Expand) > 0 && len(sub.Entities) > 0 {
		ids := make([]string, 0, len(sub.Entities))
		for _, e := range sub.Entities {
			ids = append(ids, e.ID)
		}
		seenRels := map[string]bool{}
		for _, exp := range params.Expand {
			q, err := buildExpandQuery(exp, ids)
			if err != nil {
				return nil, err
			}
			expRes, err := session.Run(ctx, q.text, q.params)
			if err != nil {
				return nil, fmt.Errorf("expanding relationships: %w", err)
			}
			for expRes.Next(ctx) {
				rec := expRes.Record()
				r := relationshipFromRecord(rec)
				if !seenRels[r.ID] {
					seenRels[r.ID] = true
					sub.Relationships = append(sub.Relationships, r)
				}
				far := entityFromRecord(rec, "m", "m_labels")
				if far.ID != "" && !seen[far.ID] {
					seen[far.ID] = true
					sub.Entities = append(sub.Entities, far)
				}
			}
			if err := expRes.Err(); err != nil {
				return nil, fmt.Errorf("expanding relationships: %w", err)
			}
		}
	}

	sub.Stats.Entities = len(sub.Entities)
	sub.Stats.Relationships = len(sub.Relationships)
	sub.Stats.Duration = time.Since(start)
	if sub.Stats.Duration > s.slowQuery {
		s.log.Warn("slow query",
			zap.Duration("duration", sub.Stats.Duration), zap.String("query", match.text))
	}

	if s.cache != nil {
		s.cache.Set(key, sub)
	}
	return sub, nil
}

// Search runs a full-text query against the entity_fulltext index.
func (s *Neo4jStore) Search(ctx context.Context, query string, entityTypes []types.EntityType, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = s.maxResults
	}

	text := "CALL db.index.fulltext.queryNodes('entity_fulltext', $q) YIELD node, score"
	if len(entityTypes) > 0 {
		var labels []string
		for _, t := range entityTypes {
			if err := labelGuard(string(t)); err != nil {
				return nil, err
			}
			labels = append(labels, "node:"+string(t))
		}
		text += " WHERE " + strings.Join(labels, " OR ")
	}
	text += " RETURN node, labels(node) AS labels, score LIMIT $limit"

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, text, map[string]any{"q": query, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	var hits []SearchHit
	for result.Next(ctx) {
		rec := result.Record()
		hit := SearchHit{Entity: entityFromRecord(rec, "node", "labels")}
		if v, ok := rec.Get("score"); ok {
			if score, ok := v.(float64); ok {
				hit.Score = score
			}
		}
		hits = append(hits, hit)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	return hits, nil
}

// Similar scores same-type entities against the given one.
func (s *Neo4jStore) Similar(ctx context.Context, id string, minScore float64, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	return similarEntities(ctx, s, id, minScore, limit)
}

// CreateEntities writes a batch of entities in one transaction.
func (s *Neo4jStore) CreateEntities(ctx context.Context, entities []*types.Entity) error {
	for _, e := range entities {
		if err := s.validator.ValidateEntity(e); err != nil {
			return err
		}
		if err := labelGuard(string(e.Type)); err != nil {
			return err
		}
		prepareEntity(e, s.newID)
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, e := range entities {
			query := fmt.Sprintf("MERGE (n:Entity:%s {id: $id}) SET n = $props", e.Type)
			if _, err := tx.Run(ctx, query, map[string]any{"id": e.ID, "props": flattenEntity(e)}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("batch creating %d entities: %w", len(entities), err)
	}

	s.invalidate()
	return nil
}

// CreateRelationships writes a batch of edges in one transaction. Endpoint
// types are resolved inside the transaction so validation sees uncommitted
// entities from the same import.
func (s *Neo4jStore) CreateRelationships(ctx context.Context, rels []*types.Relationship) error {
	for _, r := range rels {
		if err := labelGuard(string(r.Type)); err != nil {
			return err
		}
		prepareRelationship(r, s.newID)
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, r := range rels {
			typeRes, err := tx.Run(ctx,
				"MATCH (a:Entity {id: $from}), (b:Entity {id: $to})"+
					" RETURN labels(a) AS from_labels, labels(b) AS to_labels",
				map[string]any{"from": r.FromID, "to": r.ToID})
			if err != nil {
				return nil, err
			}
			if !typeRes.Next(ctx) {
				return nil, fmt.Errorf("relationship %s -> %s: endpoint %w", r.FromID, r.ToID, ErrNotFound)
			}
			rec := typeRes.Record()
			fromLabels, _ := rec.Get("from_labels")
			toLabels, _ := rec.Get("to_labels")
			fromType := types.EntityType(typeFromLabels(anyStrings(fromLabels)))
			toType := types.EntityType(typeFromLabels(anyStrings(toLabels)))
			if err := s.validator.ValidateRelationship(r, fromType, toType); err != nil {
				return nil, err
			}

			query := fmt.Sprintf(
				"MATCH (a:Entity {id: $from}), (b:Entity {id: $to}) MERGE (a)-[r:%s {id: $id}]->(b) SET r = $props",
				r.Type)
			if _, err := tx.Run(ctx, query, map[string]any{
				"from": r.FromID, "to": r.ToID, "id": r.ID, "props": flattenRelationship(r),
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("batch creating %d relationships: %w", len(rels), err)
	}

	s.invalidate()
	return nil
}

// Ping verifies the Bolt connection.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close releases the driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// entityFromRecord maps a node value and its labels out of a record.
func entityFromRecord(rec *neo4j.Record, nodeKey, labelsKey string) types.Entity {
	v, _ := rec.Get(nodeKey)
	node, ok := v.(neo4j.Node)
	if !ok {
		return types.Entity{}
	}
	labels, _ := rec.Get(labelsKey)
	return entityFromProps(node.Props, typeFromLabels(anyStrings(labels)))
}

// relationshipFromRecord maps an edge value plus the rel_type/from_id/to_id
// aliases out of a record.
func relationshipFromRecord(rec *neo4j.Record) types.Relationship {
	v, _ := rec.Get("r")
	rel, ok := v.(neo4j.Relationship)
	if !ok {
		return types.Relationship{}
	}
	relType := rel.Type
	if t, ok := rec.Get("rel_type"); ok {
		if s, ok := t.(string); ok && s != "" {
			relType = s
		}
	}
	var fromID, toID string
	if v, ok := rec.Get("from_id"); ok {
		fromID, _ = v.(string)
	}
	if v, ok := rec.Get("to_id"); ok {
		toID, _ = v.(string)
	}
	return relationshipFromProps(rel.Props, relType, fromID, toID)
}

// typeFromLabels picks the entity type label, skipping the shared :Entity
// label.
func typeFromLabels(labels []string) string {
	for _, l := range labels {
		if l != "Entity" {
			return l
		}
	}
	return ""
}

func anyStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
