// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/knowledge-engine/internal/schema"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// reservedKeys are node properties managed by the store. Free-form entity
// properties may not shadow them.
var reservedKeys = map[string]bool{
	"id": true, "name": true, "description": true, "tier": true,
	"version": true, "created_at": true, "updated_at": true,
	"provenance_source": true, "provenance_extractor": true, "provenance_recorded_at": true,
}

// cypherQuery is a statement with its bound parameters.
type cypherQuery struct {
	text   string
	params map[string]any
}

// flattenEntity maps an entity onto flat node properties. Neo4j properties
// hold scalars and homogeneous lists only, so nested values are stored as
// JSON strings.
func flattenEntity(e *types.Entity) map[string]any {
	props := map[string]any{
		"id":          e.ID,
		"name":        e.Name,
		"description": e.Description,
		"tier":        string(e.Tier),
		"version":     e.Version,
		"created_at":  e.CreatedAt,
		"updated_at":  e.UpdatedAt,
	}
	if e.Provenance != nil {
		props["provenance_source"] = e.Provenance.Source
		props["provenance_extractor"] = e.Provenance.Extractor
		props["provenance_recorded_at"] = e.Provenance.RecordedAt
	}
	for k, v := range e.Properties {
		if reservedKeys[k] {
			continue
		}
		props[k] = flattenValue(v)
	}
	return props
}

func flattenValue(v any) any {
	switch val := v.(type) {
	case string, bool, int, int64, float64:
		return val
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				raw, _ := json.Marshal(val)
				return string(raw)
			}
			out = append(out, s)
		}
		return out
	default:
		raw, _ := json.Marshal(val)
		return string(raw)
	}
}

// entityFromProps rebuilds an entity from flat node properties. typeLabel is
// the node's entity label.
func entityFromProps(props map[string]any, typeLabel string) types.Entity {
	e := types.Entity{
		Type:        types.EntityType(typeLabel),
		ID:          stringProp(props, "id"),
		Name:        stringProp(props, "name"),
		Description: stringProp(props, "description"),
		Tier:        types.Tier(stringProp(props, "tier")),
		Version:     intProp(props, "version"),
		CreatedAt:   stringProp(props, "created_at"),
		UpdatedAt:   stringProp(props, "updated_at"),
	}
	if src := stringProp(props, "provenance_source"); src != "" {
		e.Provenance = &types.Provenance{
			Source:     src,
			Extractor:  stringProp(props, "provenance_extractor"),
			RecordedAt: stringProp(props, "provenance_recorded_at"),
		}
	}
	for k, v := range props {
		if reservedKeys[k] {
			continue
		}
		if e.Properties == nil {
			e.Properties = map[string]any{}
		}
		e.Properties[k] = v
	}
	return e
}

// flattenRelationship maps a relationship onto flat edge properties.
func flattenRelationship(r *types.Relationship) map[string]any {
	props := map[string]any{
		"id":         r.ID,
		"created_at": r.CreatedAt,
	}
	for k, v := range r.Properties {
		if k == "id" || k == "created_at" {
			continue
		}
		props[k] = flattenValue(v)
	}
	return props
}

// relationshipFromProps rebuilds a relationship from flat edge properties.
func relationshipFromProps(props map[string]any, relType, fromID, toID string) types.Relationship {
	r := types.Relationship{
		ID:        stringProp(props, "id"),
		Type:      types.RelationshipType(relType),
		FromID:    fromID,
		ToID:      toID,
		CreatedAt: stringProp(props, "created_at"),
	}
	for k, v := range props {
		if k == "id" || k == "created_at" {
			continue
		}
		if r.Properties == nil {
			r.Properties = map[string]any{}
		}
		r.Properties[k] = v
	}
	return r
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func intProp(props map[string]any, key string) int {
	switch n := props[key].(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// labelGuard rejects type names that cannot be safely interpolated as
// Cypher labels. Labels are not bindable as parameters.
func labelGuard(name string) error {
	if !schema.ValidLabel(name) {
		return fmt.Errorf("invalid label %q", name)
	}
	return nil
}

// buildMatchQuery compiles QueryParams into a Cypher MATCH statement. The
// companion count statement shares the WHERE clause.
func buildMatchQuery(p QueryParams) (match, count cypherQuery, err error) {
	where, params, err := buildWhere(p)
	if err != nil {
		return cypherQuery{}, cypherQuery{}, err
	}

	var b strings.Builder
	b.WriteString("MATCH (n:Entity)")
	b.WriteString(where)
	b.WriteString(" RETURN n, labels(n) AS labels ORDER BY n.name SKIP $skip LIMIT $limit")

	matchParams := map[string]any{"skip": p.Skip, "limit": p.Limit}
	for k, v := range params {
		matchParams[k] = v
	}
	match = cypherQuery{text: b.String(), params: matchParams}

	count = cypherQuery{
		text:   "MATCH (n:Entity)" + where + " RETURN count(n) AS total",
		params: params,
	}
	return match, count, nil
}

// buildWhere assembles the WHERE clause shared by match and count queries.
func buildWhere(p QueryParams) (string, map[string]any, error) {
	var clauses []string
	params := map[string]any{}

	if len(p.EntityTypes) > 0 {
		var labels []string
		for _, t := range p.EntityTypes {
			if err := labelGuard(string(t)); err != nil {
				return "", nil, err
			}
			labels = append(labels, "n:"+string(t))
		}
		clauses = append(clauses, "("+strings.Join(labels, " OR ")+")")
	}

	// Deterministic parameter order keeps query text stable for the cache.
	propKeys := make([]string, 0, len(p.Properties))
	for k := range p.Properties {
		propKeys = append(propKeys, k)
	}
	sort.Strings(propKeys)
	for i, k := range propKeys {
		if err := labelGuard(k); err != nil {
			return "", nil, err
		}
		name := fmt.Sprintf("p%d", i)
		clauses = append(clauses, fmt.Sprintf("n.%s = $%s", k, name))
		params[name] = flattenValue(p.Properties[k])
	}

	for i, f := range p.Filters {
		if !ValidOp(f.Op) {
			return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
		if err := labelGuard(f.Property); err != nil {
			return "", nil, err
		}
		op := f.Op
		if op == "!=" {
			op = "<>"
		}
		name := fmt.Sprintf("f%d", i)
		clauses = append(clauses, fmt.Sprintf("n.%s %s $%s", f.Property, op, name))
		params[name] = flattenValue(f.Value)
	}

	if p.Tier != "" {
		if p.Cumulative {
			var tiers []string
			for _, t := range cumulativeTiers(p.Tier) {
				tiers = append(tiers, string(t))
			}
			clauses = append(clauses, "n.tier IN $tiers")
			params["tiers"] = tiers
		} else {
			clauses = append(clauses, "n.tier = $tier")
			params["tier"] = string(p.Tier)
		}
	}

	if p.Search != "" {
		clauses = append(clauses,
			"(toLower(n.name) CONTAINS toLower($search) OR toLower(n.description) CONTAINS toLower($search))")
		params["search"] = p.Search
	}

	if len(clauses) == 0 {
		return "", params, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), params, nil
}

// buildExpandQuery compiles one relationship expansion over a set of matched
// entity IDs.
func buildExpandQuery(exp Expansion, ids []string) (cypherQuery, error) {
	relPart := "r"
	if exp.Type != "" {
		if err := labelGuard(string(exp.Type)); err != nil {
			return cypherQuery{}, err
		}
		relPart = "r:" + string(exp.Type)
	}

	var pattern string
	switch exp.Direction {
	case types.DirectionOutgoing:
		pattern = fmt.Sprintf("(n:Entity)-[%s]->(m:Entity)", relPart)
	case types.DirectionIncoming:
		pattern = fmt.Sprintf("(n:Entity)<-[%s]-(m:Entity)", relPart)
	default:
		pattern = fmt.Sprintf("(n:Entity)-[%s]-(m:Entity)", relPart)
	}

	where := " WHERE n.id IN $ids"
	if exp.TargetType != "" {
		if err := labelGuard(string(exp.TargetType)); err != nil {
			return cypherQuery{}, err
		}
		where += " AND m:" + string(exp.TargetType)
	}

	text := "MATCH " + pattern + where +
		" RETURN r, type(r) AS rel_type, startNode(r).id AS from_id, endNode(r).id AS to_id, m, labels(m) AS m_labels"
	return cypherQuery{text: text, params: map[string]any{"ids": ids}}, nil
}

// buildNeighborsQuery compiles a Neighbors lookup.
func buildNeighborsQuery(entityID string, relType types.RelationshipType, dir types.Direction) (cypherQuery, error) {
	relPart := "r"
	if relType != "" {
		if err := labelGuard(string(relType)); err != nil {
			return cypherQuery{}, err
		}
		relPart = "r:" + string(relType)
	}

	var pattern string
	switch dir {
	case types.DirectionOutgoing:
		pattern = fmt.Sprintf("(n:Entity {id: $id})-[%s]->(m:Entity)", relPart)
	case types.DirectionIncoming:
		pattern = fmt.Sprintf("(n:Entity {id: $id})<-[%s]-(m:Entity)", relPart)
	default:
		pattern = fmt.Sprintf("(n:Entity {id: $id})-[%s]-(m:Entity)", relPart)
	}

	text := "MATCH " + pattern +
		" RETURN r, type(r) AS rel_type, startNode(r).id AS from_id, endNode(r).id AS to_id"
	return cypherQuery{text: text, params: map[string]any{"id": entityID}}, nil
}
