// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
	"time"
)

// EntityType labels a node in the knowledge graph. Symbols (notation) and
// Concepts (meaning) are distinct types and are never merged: one symbol may
// represent several concepts, and one concept may be written several ways.
type EntityType string

const (
	EntityDocument       EntityType = "Document"
	EntityConcept        EntityType = "Concept"
	EntitySymbol         EntityType = "Symbol"
	EntityAlgorithm      EntityType = "Algorithm"
	EntityImplementation EntityType = "Implementation"
	EntityDomain         EntityType = "Domain"
)

// AllEntityTypes returns every known entity type in declaration order.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityDocument,
		EntityConcept,
		EntitySymbol,
		EntityAlgorithm,
		EntityImplementation,
		EntityDomain,
	}
}

// ParseEntityType resolves a case-insensitive name to an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	for _, t := range AllEntityTypes() {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Tier is a knowledge detail level. Descriptions grow with the tier: L1 is a
// core summary, L2 a functional explanation, L3 the complete treatment.
type Tier string

const (
	TierL1 Tier = "L1"
	TierL2 Tier = "L2"
	TierL3 Tier = "L3"
)

// AllTiers returns the tiers in ascending order of detail.
func AllTiers() []Tier {
	return []Tier{TierL1, TierL2, TierL3}
}

// Rank orders tiers: L1 < L2 < L3. Unknown tiers rank below L1.
func (t Tier) Rank() int {
	switch t {
	case TierL1:
		return 1
	case TierL2:
		return 2
	case TierL3:
		return 3
	default:
		return 0
	}
}

// Valid reports whether t is one of the three known tiers.
func (t Tier) Valid() bool {
	return t.Rank() > 0
}

// ParseTier resolves a case-insensitive tier name ("l2", "L2").
func ParseTier(s string) (Tier, error) {
	for _, t := range AllTiers() {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tier %q (expected L1, L2, or L3)", s)
}

// Provenance records where an entity's content came from.
type Provenance struct {
	// Source identifies the origin document: a DOI, arXiv ID, URL, or the
	// ID of a Document entity in the graph.
	Source string `json:"source" yaml:"source"`

	// Extractor names the tool or person that produced the content.
	Extractor string `json:"extractor,omitempty" yaml:"extractor,omitempty"`

	// RecordedAt is when the content was captured, RFC 3339 UTC.
	RecordedAt string `json:"recorded_at,omitempty" yaml:"recorded_at,omitempty"`
}

// Entity is a node in the knowledge graph.
type Entity struct {
	// ID is a UUID assigned on creation.
	ID string `json:"id" yaml:"id"`

	// Type is the entity's label.
	Type EntityType `json:"type" yaml:"type"`

	// Name is the human-readable identifier, unique only by convention.
	Name string `json:"name" yaml:"name"`

	// Description is the tiered knowledge content.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Tier is the detail level of Description.
	Tier Tier `json:"tier" yaml:"tier"`

	// Properties holds type-specific properties (Document: title, authors;
	// Symbol: latex, context; ...). Values are scalars or string lists.
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`

	// Provenance records the content's origin. Optional.
	Provenance *Provenance `json:"provenance,omitempty" yaml:"provenance,omitempty"`

	// Version starts at 1 and increments on every update.
	Version int `json:"version" yaml:"version"`

	// CreatedAt and UpdatedAt are RFC 3339 UTC timestamps.
	CreatedAt string `json:"created_at" yaml:"created_at"`
	UpdatedAt string `json:"updated_at" yaml:"updated_at"`
}

// Timestamp returns the current time in the storage format, RFC 3339 UTC.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
