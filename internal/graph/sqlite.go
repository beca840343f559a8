// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/knowledge-engine/internal/schema"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// sqliteSchema is applied on every open. All statements are idempotent.
// The FTS table indexes entity names and descriptions; triggers keep it in
// sync with the entities table.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entities (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	tier TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	provenance TEXT,
	version INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
CREATE INDEX IF NOT EXISTS idx_entities_tier ON entities(tier);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);

CREATE TABLE IF NOT EXISTS relationships (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL,
	from_id TEXT NOT NULL REFERENCES entities(id),
	to_id TEXT NOT NULL REFERENCES entities(id),
	properties TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(type);

CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
	name, description,
	content=entities,
	content_rowid=seq
);

CREATE TRIGGER IF NOT EXISTS entities_ai AFTER INSERT ON entities BEGIN
	INSERT INTO entities_fts(rowid, name, description)
	VALUES (new.seq, new.name, new.description);
END;

CREATE TRIGGER IF NOT EXISTS entities_ad AFTER DELETE ON entities BEGIN
	INSERT INTO entities_fts(entities_fts, rowid, name, description)
	VALUES ('delete', old.seq, old.name, old.description);
END;

CREATE TRIGGER IF NOT EXISTS entities_au AFTER UPDATE ON entities BEGIN
	INSERT INTO entities_fts(entities_fts, rowid, name, description)
	VALUES ('delete', old.seq, old.name, old.description);
	INSERT INTO entities_fts(rowid, name, description)
	VALUES (new.seq, new.name, new.description);
END;
`

// SQLiteStore is the embedded Store backend. It serves offline and
// development use with the same semantics as the Neo4j adapter.
type SQLiteStore struct {
	db         *sql.DB
	validator  *schema.Validator
	log        *zap.Logger
	maxResults int
	newID      func() string
}

var _ Store = (*SQLiteStore)(nil)
var _ BatchStore = (*SQLiteStore)(nil)

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string, opts Options) (*SQLiteStore, error) {
	opts.fill()

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema to %s: %w", path, err)
	}

	return &SQLiteStore{
		db:         db,
		validator:  opts.Validator,
		log:        opts.Logger,
		maxResults: opts.MaxResults,
		newID:      uuid.NewString,
	}, nil
}

// CreateEntity persists an entity, assigning ID and timestamps when absent.
func (s *SQLiteStore) CreateEntity(ctx context.Context, e *types.Entity) (string, error) {
	if err := s.validator.ValidateEntity(e); err != nil {
		return "", err
	}
	prepareEntity(e, s.newID)

	props, prov, err := encodeEntityColumns(e)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (id, type, name, description, tier, properties, provenance, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.Name, e.Description, string(e.Tier), props, prov,
		e.Version, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("creating entity %s: %w", e.ID, err)
	}

	s.log.Debug("entity created",
		zap.String("id", e.ID), zap.String("type", string(e.Type)), zap.String("name", e.Name))
	return e.ID, nil
}

// GetEntity fetches an entity by ID.
func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, description, tier, properties, provenance, version, created_at, updated_at
		FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching entity %s: %w", id, err)
	}
	return e, nil
}

// UpdateEntity merges props into the entity and bumps its version.
func (s *SQLiteStore) UpdateEntity(ctx context.Context, id string, props map[string]any) (*types.Entity, error) {
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

	propsJSON, prov, err := encodeEntityColumns(e)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE entities SET name = ?, description = ?, tier = ?, properties = ?, provenance = ?, version = ?, updated_at = ?
		WHERE id = ?`,
		e.Name, e.Description, string(e.Tier), propsJSON, prov, e.Version, e.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("updating entity %s: %w", id, err)
	}

	s.log.Debug("entity updated", zap.String("id", id), zap.Int("version", e.Version))
	return e, nil
}

// DeleteEntity removes an entity. Without detach, an entity that still has
// relationships is left in place and ErrHasRelationships is returned.
func (s *SQLiteStore) DeleteEntity(ctx context.Context, id string, detach bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deleting entity %s: %w", id, err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM entities WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("deleting entity %s: %w", id, err)
	}
	if exists == 0 {
		return fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}

	var degree int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM relationships WHERE from_id = ? OR to_id = ?`, id, id).Scan(&degree); err != nil {
		return fmt.Errorf("deleting entity %s: %w", id, err)
	}
	if degree > 0 {
		if !detach {
			return fmt.Errorf("entity %s has %d relationships: %w", id, degree, ErrHasRelationships)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM relationships WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
			return fmt.Errorf("detaching entity %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting entity %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("deleting entity %s: %w", id, err)
	}

	s.log.Debug("entity deleted", zap.String("id", id), zap.Bool("detach", detach))
	return nil
}

// ListEntities pages through entities matching the options.
func (s *SQLiteStore) ListEntities(ctx context.Context, opts ListOptions) ([]types.Entity, int, error) {
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
func (s *SQLiteStore) CreateRelationship(ctx context.Context, r *types.Relationship) (string, error) {
	fromType, err := s.entityType(ctx, r.FromID)
	if err != nil {
		return "", err
	}
	toType, err := s.entityType(ctx, r.ToID)
	if err != nil {
		return "", err
	}
	if err := s.validator.ValidateRelationship(r, fromType, toType); err != nil {
		return "", err
	}
	prepareRelationship(r, s.newID)

	props, err := json.Marshal(r.Properties)
	if err != nil {
		return "", fmt.Errorf("encoding relationship properties: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relationships (id, type, from_id, to_id, properties, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Type), r.FromID, r.ToID, string(props), r.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("creating relationship %s: %w", r.ID, err)
	}

	s.log.Debug("relationship created",
		zap.String("id", r.ID), zap.String("type", string(r.Type)),
		zap.String("from", r.FromID), zap.String("to", r.ToID))
	return r.ID, nil
}

// GetRelationship fetches an edge by ID.
func (s *SQLiteStore) GetRelationship(ctx context.Context, id string) (*types.Relationship, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, from_id, to_id, properties, created_at
		FROM relationships WHERE id = ?`, id)
	r, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("relationship %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching relationship %s: %w", id, err)
	}
	return r, nil
}

// UpdateRelationship merges props into the edge's properties and
// re-validates it against the endpoint entity types.
func (s *SQLiteStore) UpdateRelationship(ctx context.Context, id string, props map[string]any) (*types.Relationship, error) {
	r, err := s.GetRelationship(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyRelationshipUpdate(r, props); err != nil {
		return nil, err
	}
	fromType, err := s.entityType(ctx, r.FromID)
	if err != nil {
		return nil, err
	}
	toType, err := s.entityType(ctx, r.ToID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateRelationship(r, fromType, toType); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(r.Properties)
	if err != nil {
		return nil, fmt.Errorf("encoding relationship properties: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE relationships SET properties = ? WHERE id = ?`, string(encoded), id); err != nil {
		return nil, fmt.Errorf("updating relationship %s: %w", id, err)
	}

	s.log.Debug("relationship updated", zap.String("id", id))
	return r, nil
}

// DeleteRelationship removes an edge by ID.
func (s *SQLiteStore) DeleteRelationship(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting relationship %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("relationship %s: %w", id, ErrNotFound)
	}
	return nil
}

// Neighbors returns the edges touching entityID.
func (s *SQLiteStore) Neighbors(ctx context.Context, entityID string, relType types.RelationshipType, dir types.Direction) ([]types.Relationship, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, type, from_id, to_id, properties, created_at FROM relationships WHERE `)
	args := []any{}

	switch dir {
	case types.DirectionOutgoing:
		b.WriteString("from_id = ?")
		args = append(args, entityID)
	case types.DirectionIncoming:
		b.WriteString("to_id = ?")
		args = append(args, entityID)
	default:
		b.WriteString("(from_id = ? OR to_id = ?)")
		args = append(args, entityID, entityID)
	}
	if relType != "" {
		b.WriteString(" AND type = ?")
		args = append(args, string(relType))
	}
	b.WriteString(" ORDER BY created_at")

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("fetching neighbors of %s: %w", entityID, err)
	}
	defer rows.Close()

	var rels []types.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("fetching neighbors of %s: %w", entityID, err)
		}
		rels = append(rels, *r)
	}
	return rels, rows.Err()
}

// Query runs a composite subgraph query.
func (s *SQLiteStore) Query(ctx context.Context, params QueryParams) (*Subgraph, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Limit <= 0 {
		params.Limit = s.maxResults
	}

	where, args, err := buildSQLWhere(params)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(`SELECT id, type, name, description, tier, properties, provenance, version, created_at, updated_at FROM entities`)
	b.WriteString(where)
	b.WriteString(" ORDER BY name LIMIT ? OFFSET ?")
	queryArgs := append(append([]any{}, args...), params.Limit, params.Skip)

	rows, err := s.db.QueryContext(ctx, b.String(), queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	defer rows.Close()

	sub := &Subgraph{}
	seen := map[string]bool{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("running query: %w", err)
		}
		sub.Entities = append(sub.Entities, *e)
		seen[e.ID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM entities"+where, args...).Scan(&sub.Stats.Total); err != nil {
		return nil, fmt.Errorf("counting query results: %w", err)
	}

	if len(params.Expand) > 0 && len(sub.Entities) > 0 {
		if err := s.expand(ctx, sub, params.Expand, seen); err != nil {
			return nil, err
		}
	}

	sub.Stats.Entities = len(sub.Entities)
	sub.Stats.Relationships = len(sub.Relationships)
	return sub, nil
}

// expand pulls matching relationships and their far endpoints into sub.
func (s *SQLiteStore) expand(ctx context.Context, sub *Subgraph, exps []Expansion, seen map[string]bool) error {
	ids := make([]string, 0, len(sub.Entities))
	for _, e := range sub.Entities {
		ids = append(ids, e.ID)
	}
	matched := map[string]bool{}
	for _, id := range ids {
		matched[id] = true
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	idArgs := make([]any, len(ids))
	for i, id := range ids {
		idArgs[i] = id
	}

	seenRels := map[string]bool{}
	for _, exp := range exps {
		var b strings.Builder
		b.WriteString(`SELECT id, type, from_id, to_id, properties, created_at FROM relationships WHERE `)
		args := []any{}

		switch exp.Direction {
		case types.DirectionOutgoing:
			b.WriteString("from_id IN (" + placeholders + ")")
			args = append(args, idArgs...)
		case types.DirectionIncoming:
			b.WriteString("to_id IN (" + placeholders + ")")
			args = append(args, idArgs...)
		default:
			b.WriteString("(from_id IN (" + placeholders + ") OR to_id IN (" + placeholders + "))")
			args = append(args, idArgs...)
			args = append(args, idArgs...)
		}
		if exp.Type != "" {
			b.WriteString(" AND type = ?")
			args = append(args, string(exp.Type))
		}

		rows, err := s.db.QueryContext(ctx, b.String(), args...)
		if err != nil {
			return fmt.Errorf("expanding relationships: %w", err)
		}
		var rels []types.Relationship
		for rows.Next() {
			r, err := scanRelationship(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("expanding relationships: %w", err)
			}
			rels = append(rels, *r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("expanding relationships: %w", err)
		}

		for _, r := range rels {
			farID := r.ToID
			if !matched[r.FromID] {
				farID = r.FromID
			}
			far, err := s.GetEntity(ctx, farID)
			if err != nil {
				return err
			}
			if exp.TargetType != "" && far.Type != exp.TargetType {
				continue
			}
			if !seenRels[r.ID] {
				seenRels[r.ID] = true
				sub.Relationships = append(sub.Relationships, r)
			}
			if !seen[far.ID] {
				seen[far.ID] = true
				sub.Entities = append(sub.Entities, *far)
			}
		}
	}
	return nil
}

// Search runs a full-text query over the FTS index.
func (s *SQLiteStore) Search(ctx context.Context, query string, entityTypes []types.EntityType, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = s.maxResults
	}

	var b strings.Builder
	b.WriteString(`
		SELECT e.id, e.type, e.name, e.description, e.tier, e.properties, e.provenance, e.version, e.created_at, e.updated_at,
		       entities_fts.rank AS score
		FROM entities_fts
		JOIN entities e ON e.seq = entities_fts.rowid
		WHERE entities_fts MATCH ?`)
	args := []any{ftsQuote(query)}

	if len(entityTypes) > 0 {
		b.WriteString(" AND e.type IN (" + strings.TrimSuffix(strings.Repeat("?,", len(entityTypes)), ",") + ")")
		for _, t := range entityTypes {
			args = append(args, string(t))
		}
	}
	b.WriteString(" ORDER BY entities_fts.rank LIMIT ?")
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var (
			e     types.Entity
			props string
			prov  sql.NullString
			score float64
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.Name, &e.Description, &e.Tier,
			&props, &prov, &e.Version, &e.CreatedAt, &e.UpdatedAt, &score); err != nil {
			return nil, fmt.Errorf("searching %q: %w", query, err)
		}
		if err := decodeEntityColumns(&e, props, prov); err != nil {
			return nil, fmt.Errorf("searching %q: %w", query, err)
		}
		// FTS5 rank is more negative for better matches.
		hits = append(hits, SearchHit{Entity: e, Score: -score})
	}
	return hits, rows.Err()
}

// Similar scores same-type entities against the given one.
func (s *SQLiteStore) Similar(ctx context.Context, id string, minScore float64, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	return similarEntities(ctx, s, id, minScore, limit)
}

// CreateEntities writes a batch of entities in one transaction.
func (s *SQLiteStore) CreateEntities(ctx context.Context, entities []*types.Entity) error {
	for _, e := range entities {
		if err := s.validator.ValidateEntity(e); err != nil {
			return err
		}
		prepareEntity(e, s.newID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("batch creating entities: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entities (id, type, name, description, tier, properties, provenance, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("batch creating entities: %w", err)
	}
	defer stmt.Close()

	for _, e := range entities {
		props, prov, err := encodeEntityColumns(e)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, string(e.Type), e.Name, e.Description, string(e.Tier), props, prov,
			e.Version, e.CreatedAt, e.UpdatedAt); err != nil {
			return fmt.Errorf("batch creating entity %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// CreateRelationships writes a batch of edges in one transaction.
func (s *SQLiteStore) CreateRelationships(ctx context.Context, rels []*types.Relationship) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("batch creating relationships: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rels {
		var fromType, toType string
		if err := tx.QueryRowContext(ctx,
			`SELECT type FROM entities WHERE id = ?`, r.FromID).Scan(&fromType); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("relationship endpoint %s: %w", r.FromID, ErrNotFound)
			}
			return fmt.Errorf("batch creating relationships: %w", err)
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT type FROM entities WHERE id = ?`, r.ToID).Scan(&toType); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("relationship endpoint %s: %w", r.ToID, ErrNotFound)
			}
			return fmt.Errorf("batch creating relationships: %w", err)
		}
		if err := s.validator.ValidateRelationship(r, types.EntityType(fromType), types.EntityType(toType)); err != nil {
			return err
		}
		prepareRelationship(r, s.newID)

		props, err := json.Marshal(r.Properties)
		if err != nil {
			return fmt.Errorf("encoding relationship properties: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO relationships (id, type, from_id, to_id, properties, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, string(r.Type), r.FromID, r.ToID, string(props), r.CreatedAt); err != nil {
			return fmt.Errorf("batch creating relationship %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *SQLiteStore) entityType(ctx context.Context, id string) (types.EntityType, error) {
	var t string
	err := s.db.QueryRowContext(ctx, `SELECT type FROM entities WHERE id = ?`, id).Scan(&t)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("fetching entity %s: %w", id, err)
	}
	return types.EntityType(t), nil
}

// buildSQLWhere assembles the WHERE clause shared by the query and its
// count. Property filters reach into the JSON properties column.
func buildSQLWhere(p QueryParams) (string, []any, error) {
	var clauses []string
	var args []any

	if len(p.EntityTypes) > 0 {
		clauses = append(clauses,
			"type IN ("+strings.TrimSuffix(strings.Repeat("?,", len(p.EntityTypes)), ",")+")")
		for _, t := range p.EntityTypes {
			args = append(args, string(t))
		}
	}

	propKeys := make([]string, 0, len(p.Properties))
	for k := range p.Properties {
		propKeys = append(propKeys, k)
	}
	// Deterministic order keeps the statement stable.
	sort.Strings(propKeys)
	for _, k := range propKeys {
		if err := labelGuard(k); err != nil {
			return "", nil, err
		}
		clauses = append(clauses, entityColumnExpr(k)+" = ?")
		args = append(args, p.Properties[k])
	}

	for _, f := range p.Filters {
		if !ValidOp(f.Op) {
			return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
		if err := labelGuard(f.Property); err != nil {
			return "", nil, err
		}
		clauses = append(clauses, entityColumnExpr(f.Property)+" "+f.Op+" ?")
		args = append(args, f.Value)
	}

	if p.Tier != "" {
		if p.Cumulative {
			tiers := cumulativeTiers(p.Tier)
			clauses = append(clauses,
				"tier IN ("+strings.TrimSuffix(strings.Repeat("?,", len(tiers)), ",")+")")
			for _, t := range tiers {
				args = append(args, string(t))
			}
		} else {
			clauses = append(clauses, "tier = ?")
			args = append(args, string(p.Tier))
		}
	}

	if p.Search != "" {
		clauses = append(clauses, "(name LIKE ? OR description LIKE ?)")
		pattern := "%" + p.Search + "%"
		args = append(args, pattern, pattern)
	}

	if len(clauses) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// entityColumnExpr maps a property name to a column or a JSON lookup.
func entityColumnExpr(name string) string {
	switch name {
	case "name", "description", "tier", "version", "created_at", "updated_at":
		return name
	default:
		return "json_extract(properties, '$." + name + "')"
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*types.Entity, error) {
	var (
		e     types.Entity
		props string
		prov  sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Type, &e.Name, &e.Description, &e.Tier,
		&props, &prov, &e.Version, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeEntityColumns(&e, props, prov); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanRelationship(row rowScanner) (*types.Relationship, error) {
	var (
		r     types.Relationship
		props string
	)
	if err := row.Scan(&r.ID, &r.Type, &r.FromID, &r.ToID, &props, &r.CreatedAt); err != nil {
		return nil, err
	}
	if props != "" && props != "{}" && props != "null" {
		if err := json.Unmarshal([]byte(props), &r.Properties); err != nil {
			return nil, fmt.Errorf("decoding relationship properties: %w", err)
		}
	}
	return &r, nil
}

func encodeEntityColumns(e *types.Entity) (props string, prov any, err error) {
	raw, err := json.Marshal(e.Properties)
	if err != nil {
		return "", nil, fmt.Errorf("encoding entity properties: %w", err)
	}
	if e.Provenance == nil {
		return string(raw), nil, nil
	}
	provRaw, err := json.Marshal(e.Provenance)
	if err != nil {
		return "", nil, fmt.Errorf("encoding entity provenance: %w", err)
	}
	return string(raw), string(provRaw), nil
}

func decodeEntityColumns(e *types.Entity, props string, prov sql.NullString) error {
	if props != "" && props != "null" {
		if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
			return fmt.Errorf("decoding entity properties: %w", err)
		}
	}
	if prov.Valid && prov.String != "" {
		e.Provenance = &types.Provenance{}
		if err := json.Unmarshal([]byte(prov.String), e.Provenance); err != nil {
			return fmt.Errorf("decoding entity provenance: %w", err)
		}
	}
	return nil
}

// ftsQuote escapes a user query for FTS5 by quoting each term.
func ftsQuote(query string) string {
	fields := strings.Fields(query)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}
