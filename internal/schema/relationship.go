// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import "github.com/pdiddy/knowledge-engine/pkg/types"

// Pair is a permitted (from, to) entity type combination for a relationship.
type Pair struct {
	From types.EntityType
	To   types.EntityType
}

// validPairs restricts each relationship type to the entity type pairs it may
// connect. A relationship whose endpoints are not listed here is rejected.
var validPairs = map[types.RelationshipType][]Pair{
	types.RelRepresents: {
		{types.EntitySymbol, types.EntityConcept},
	},
	types.RelConflictsWith: {
		{types.EntitySymbol, types.EntitySymbol},
		{types.EntityConcept, types.EntityConcept},
	},
	types.RelHasInterpretationIn: {
		{types.EntitySymbol, types.EntityDomain},
		{types.EntityConcept, types.EntityDomain},
	},
	types.RelContains: {
		{types.EntityDocument, types.EntityConcept},
		{types.EntityDocument, types.EntitySymbol},
		{types.EntityDocument, types.EntityAlgorithm},
	},
	types.RelImplements: {
		{types.EntityImplementation, types.EntityAlgorithm},
		{types.EntityImplementation, types.EntityConcept},
	},
	types.RelIsA: {
		{types.EntityConcept, types.EntityConcept},
		{types.EntityAlgorithm, types.EntityConcept},
	},
	types.RelPartOf: {
		{types.EntityConcept, types.EntityConcept},
		{types.EntityConcept, types.EntityDomain},
		{types.EntityDomain, types.EntityDomain},
	},
	types.RelReferences: {
		{types.EntityDocument, types.EntityDocument},
	},
	types.RelDefines: {
		{types.EntityDocument, types.EntityConcept},
		{types.EntityDocument, types.EntitySymbol},
	},
	types.RelUses: {
		{types.EntityAlgorithm, types.EntityConcept},
		{types.EntityAlgorithm, types.EntitySymbol},
		{types.EntityImplementation, types.EntityConcept},
	},
	types.RelGeneralizes: {
		{types.EntityConcept, types.EntityConcept},
		{types.EntityAlgorithm, types.EntityAlgorithm},
	},
	types.RelSpecializes: {
		{types.EntityConcept, types.EntityConcept},
		{types.EntityAlgorithm, types.EntityAlgorithm},
	},
	types.RelExtends: {
		{types.EntityAlgorithm, types.EntityAlgorithm},
		{types.EntityImplementation, types.EntityImplementation},
	},
	types.RelRelatedTo: nil, // any pair
}

// requiredRelProps lists properties a relationship type must carry.
var requiredRelProps = map[types.RelationshipType][]string{
	types.RelRepresents:          {"context", "confidence"},
	types.RelConflictsWith:       {"resolution_strategy"},
	types.RelHasInterpretationIn: {"meaning"},
}

// ValidPair reports whether the relationship type permits the given endpoint
// types. Types with no pair list (RELATED_TO) permit any endpoints.
func ValidPair(rel types.RelationshipType, from, to types.EntityType) bool {
	pairs, ok := validPairs[rel]
	if !ok {
		return false
	}
	if pairs == nil {
		return true
	}
	for _, p := range pairs {
		if p.From == from && p.To == to {
			return true
		}
	}
	return false
}

// PairsFor returns the permitted endpoint pairs for a relationship type.
// A nil slice with ok=true means any pair is permitted.
func PairsFor(rel types.RelationshipType) ([]Pair, bool) {
	pairs, ok := validPairs[rel]
	return pairs, ok
}
