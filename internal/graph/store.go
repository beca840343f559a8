// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graph persists the knowledge graph. Two backends implement the
// Store interface: a Neo4j adapter speaking Bolt and an embedded SQLite
// store for offline use.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/knowledge-engine/pkg/types"
)

var (
	// ErrNotFound reports a missing entity or relationship.
	ErrNotFound = errors.New("not found")

	// ErrHasRelationships reports a refused delete: the entity still has
	// edges and detach was not requested.
	ErrHasRelationships = errors.New("entity has relationships")
)

// Comparison is a property filter with an operator, e.g. year >= 2017.
type Comparison struct {
	Property string `json:"property"`
	Op       string `json:"op"`
	Value    any    `json:"value"`
}

var validOps = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

// ValidOp reports whether op is a supported comparison operator. Operators
// are interpolated into query text and must come from this set.
func ValidOp(op string) bool {
	return validOps[op]
}

// Expansion pulls relationships (and their far endpoints) into a query
// result.
type Expansion struct {
	// Type restricts the edge label. Empty matches any type.
	Type types.RelationshipType `json:"type,omitempty"`

	// Direction is outgoing, incoming, or both (the default).
	Direction types.Direction `json:"direction,omitempty"`

	// TargetType restricts the far endpoint's entity type. Optional.
	TargetType types.EntityType `json:"target_type,omitempty"`
}

// ListOptions filters and paginates an entity listing.
type ListOptions struct {
	Type       types.EntityType
	Tier       types.Tier
	Properties map[string]any
	Skip       int
	Limit      int
}

// QueryParams describes a composite subgraph query.
type QueryParams struct {
	// EntityTypes restricts results to the given labels. Empty means all.
	EntityTypes []types.EntityType `json:"entity_types,omitempty"`

	// Properties are exact-match filters.
	Properties map[string]any `json:"properties,omitempty"`

	// Filters are comparison filters, applied in addition to Properties.
	Filters []Comparison `json:"filters,omitempty"`

	// Tier scopes results to a detail level. With Cumulative set, every
	// tier at or below it matches.
	Tier       types.Tier `json:"tier,omitempty"`
	Cumulative bool       `json:"cumulative,omitempty"`

	// Search adds a full-text predicate over name and description.
	Search string `json:"search,omitempty"`

	// Expand pulls matching relationships into the result.
	Expand []Expansion `json:"expand,omitempty"`

	Skip  int `json:"skip,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Validate rejects parameter combinations that cannot be compiled into a
// query: unknown operators and unsafe labels.
func (p *QueryParams) Validate() error {
	for _, f := range p.Filters {
		if !ValidOp(f.Op) {
			return fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	if p.Tier != "" && !p.Tier.Valid() {
		return fmt.Errorf("unknown tier %q", p.Tier)
	}
	return nil
}

// QueryStats reports how a query was answered.
type QueryStats struct {
	Entities      int           `json:"entities"`
	Relationships int           `json:"relationships"`
	Total         int           `json:"total"`
	Duration      time.Duration `json:"duration"`
	Cached        bool          `json:"cached"`
}

// Subgraph is a query result: matched entities, expanded relationships, and
// execution stats.
type Subgraph struct {
	Entities      []types.Entity       `json:"entities"`
	Relationships []types.Relationship `json:"relationships,omitempty"`
	Stats         QueryStats           `json:"stats"`
}

// SearchHit is one full-text search result.
type SearchHit struct {
	Entity types.Entity `json:"entity"`
	Score  float64      `json:"score"`
}

// Store is the persistence interface for the knowledge graph.
//
// CreateEntity assigns an ID and timestamps when absent and validates the
// payload. UpdateEntity merges props into the entity (the keys "name",
// "description", and "tier" address the corresponding fields; everything
// else lands in Properties), re-validates, and bumps the version.
// DeleteEntity refuses to remove an entity with edges unless detach is set.
// UpdateRelationship merges props into the edge's free-form properties and
// re-validates; the edge's type and endpoints are immutable.
type Store interface {
	CreateEntity(ctx context.Context, e *types.Entity) (string, error)
	GetEntity(ctx context.Context, id string) (*types.Entity, error)
	UpdateEntity(ctx context.Context, id string, props map[string]any) (*types.Entity, error)
	DeleteEntity(ctx context.Context, id string, detach bool) error
	ListEntities(ctx context.Context, opts ListOptions) ([]types.Entity, int, error)

	CreateRelationship(ctx context.Context, r *types.Relationship) (string, error)
	GetRelationship(ctx context.Context, id string) (*types.Relationship, error)
	UpdateRelationship(ctx context.Context, id string, props map[string]any) (*types.Relationship, error)
	DeleteRelationship(ctx context.Context, id string) error

	// Neighbors returns the edges touching an entity, filtered by type and
	// direction. An empty relType matches every type.
	Neighbors(ctx context.Context, entityID string, relType types.RelationshipType, dir types.Direction) ([]types.Relationship, error)

	Query(ctx context.Context, params QueryParams) (*Subgraph, error)
	Search(ctx context.Context, query string, entityTypes []types.EntityType, limit int) ([]SearchHit, error)

	// Similar scores entities of the same type against the given one and
	// returns those at or above minScore, best first.
	Similar(ctx context.Context, id string, minScore float64, limit int) ([]SearchHit, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// BatchStore is implemented by backends that can write a batch in a single
// transaction. Bulk import prefers it over item-at-a-time writes.
type BatchStore interface {
	CreateEntities(ctx context.Context, entities []*types.Entity) error
	CreateRelationships(ctx context.Context, rels []*types.Relationship) error
}

// prepareEntity fills server-assigned fields before persistence.
func prepareEntity(e *types.Entity, newID func() string) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Version == 0 {
		e.Version = 1
	}
	now := types.Timestamp()
	if e.CreatedAt == "" {
		e.CreatedAt = now
	}
	if e.UpdatedAt == "" {
		e.UpdatedAt = now
	}
}

// prepareRelationship fills server-assigned fields before persistence.
func prepareRelationship(r *types.Relationship, newID func() string) {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt == "" {
		r.CreatedAt = types.Timestamp()
	}
}

// applyUpdate merges an update payload into an entity and bumps its version.
func applyUpdate(e *types.Entity, props map[string]any) error {
	for k, v := range props {
		switch k {
		case "name":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("name must be a string")
			}
			e.Name = s
		case "description":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("description must be a string")
			}
			e.Description = s
		case "tier":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("tier must be a string")
			}
			tier, err := types.ParseTier(s)
			if err != nil {
				return err
			}
			e.Tier = tier
		default:
			// Store-managed columns cannot be set through an update; letting
			// them into Properties would persist differently per backend.
			if reservedKeys[k] || k == "type" {
				return fmt.Errorf("property %q is managed by the store and cannot be updated", k)
			}
			if e.Properties == nil {
				e.Properties = map[string]any{}
			}
			e.Properties[k] = v
		}
	}
	e.Version++
	e.UpdatedAt = types.Timestamp()
	return nil
}

// relationshipReservedKeys are edge fields managed by the store; an update
// may touch free-form properties only.
var relationshipReservedKeys = map[string]bool{
	"id": true, "type": true, "from_id": true, "to_id": true, "created_at": true,
}

// applyRelationshipUpdate merges an update payload into a relationship's
// properties. Type and endpoints are immutable; delete and recreate instead.
func applyRelationshipUpdate(r *types.Relationship, props map[string]any) error {
	for k, v := range props {
		if relationshipReservedKeys[k] {
			return fmt.Errorf("property %q is managed by the store and cannot be updated", k)
		}
		if r.Properties == nil {
			r.Properties = map[string]any{}
		}
		r.Properties[k] = v
	}
	return nil
}

// cumulativeTiers returns the tiers at or below t in ascending order.
func cumulativeTiers(t types.Tier) []types.Tier {
	var out []types.Tier
	for _, tier := range types.AllTiers() {
		if tier.Rank() <= t.Rank() {
			out = append(out, tier)
		}
	}
	return out
}
