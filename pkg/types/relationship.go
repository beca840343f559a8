// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// RelationshipType labels a typed edge between two entities.
type RelationshipType string

const (
	// RelRepresents links a Symbol to a Concept it denotes. Carries context
	// and a confidence score.
	RelRepresents RelationshipType = "REPRESENTS"

	// RelConflictsWith links two Symbols that share notation but mean
	// different things. Carries a resolution strategy.
	RelConflictsWith RelationshipType = "CONFLICTS_WITH"

	// RelHasInterpretationIn links a Symbol or Concept to a Domain where it
	// takes a domain-specific meaning.
	RelHasInterpretationIn RelationshipType = "HAS_INTERPRETATION_IN"

	RelContains    RelationshipType = "CONTAINS"
	RelImplements  RelationshipType = "IMPLEMENTS"
	RelIsA         RelationshipType = "IS_A"
	RelPartOf      RelationshipType = "PART_OF"
	RelReferences  RelationshipType = "REFERENCES"
	RelDefines     RelationshipType = "DEFINES"
	RelUses        RelationshipType = "USES"
	RelGeneralizes RelationshipType = "GENERALIZES"
	RelSpecializes RelationshipType = "SPECIALIZES"
	RelExtends     RelationshipType = "EXTENDS"
	RelRelatedTo   RelationshipType = "RELATED_TO"
)

// AllRelationshipTypes returns every known relationship type.
func AllRelationshipTypes() []RelationshipType {
	return []RelationshipType{
		RelRepresents,
		RelConflictsWith,
		RelHasInterpretationIn,
		RelContains,
		RelImplements,
		RelIsA,
		RelPartOf,
		RelReferences,
		RelDefines,
		RelUses,
		RelGeneralizes,
		RelSpecializes,
		RelExtends,
		RelRelatedTo,
	}
}

// ParseRelationshipType resolves a case-insensitive name, accepting both
// "conflicts_with" and "CONFLICTS_WITH".
func ParseRelationshipType(s string) (RelationshipType, error) {
	for _, t := range AllRelationshipTypes() {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown relationship type %q", s)
}

// Direction selects which edges to traverse relative to an entity.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// Relationship is a typed, directed edge in the knowledge graph.
type Relationship struct {
	// ID is a UUID assigned on creation.
	ID string `json:"id" yaml:"id"`

	// Type is the edge label.
	Type RelationshipType `json:"type" yaml:"type"`

	// FromID and ToID reference entity IDs; the edge points from -> to.
	FromID string `json:"from_id" yaml:"from_id"`
	ToID   string `json:"to_id" yaml:"to_id"`

	// Properties holds edge properties (REPRESENTS: context, confidence).
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`

	// CreatedAt is an RFC 3339 UTC timestamp.
	CreatedAt string `json:"created_at" yaml:"created_at"`
}
