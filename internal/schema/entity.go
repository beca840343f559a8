// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import "github.com/pdiddy/knowledge-engine/pkg/types"

// PropKind constrains the value of a typed property.
type PropKind int

const (
	KindString PropKind = iota
	KindNumber
	KindStringList
)

func (k PropKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindStringList:
		return "string list"
	default:
		return "unknown"
	}
}

// PropSpec describes one property of an entity type.
type PropSpec struct {
	Name string
	Kind PropKind
}

// EntitySpec lists the required and typed optional properties of an entity
// type. Properties not listed are allowed and pass through unchecked.
type EntitySpec struct {
	Required []PropSpec
	Optional []PropSpec
}

// entitySpecs is the per-type property schema. Required properties must be
// present and well-typed on create; optional properties are type-checked
// only when present.
var entitySpecs = map[types.EntityType]EntitySpec{
	types.EntityDocument: {
		Required: []PropSpec{
			{Name: "title", Kind: KindString},
			{Name: "authors", Kind: KindStringList},
		},
		Optional: []PropSpec{
			{Name: "year", Kind: KindNumber},
			{Name: "doi", Kind: KindString},
			{Name: "url", Kind: KindString},
			{Name: "abstract", Kind: KindString},
			{Name: "keywords", Kind: KindStringList},
		},
	},
	types.EntityConcept: {
		Optional: []PropSpec{
			{Name: "aliases", Kind: KindStringList},
			{Name: "domain", Kind: KindString},
			{Name: "formal_definition", Kind: KindString},
		},
	},
	types.EntitySymbol: {
		Required: []PropSpec{
			{Name: "latex", Kind: KindString},
			{Name: "context", Kind: KindString},
		},
		Optional: []PropSpec{
			{Name: "paper_reference", Kind: KindString},
			{Name: "meaning", Kind: KindString},
			{Name: "dimensions", Kind: KindString},
		},
	},
	types.EntityAlgorithm: {
		Optional: []PropSpec{
			{Name: "complexity", Kind: KindString},
			{Name: "pseudocode", Kind: KindString},
			{Name: "inputs", Kind: KindStringList},
			{Name: "outputs", Kind: KindStringList},
		},
	},
	types.EntityImplementation: {
		Optional: []PropSpec{
			{Name: "language", Kind: KindString},
			{Name: "repository", Kind: KindString},
			{Name: "dependencies", Kind: KindStringList},
		},
	},
	types.EntityDomain: {
		Optional: []PropSpec{
			{Name: "parent_domain", Kind: KindString},
			{Name: "conventions", Kind: KindString},
		},
	},
}

// SpecFor returns the property schema for an entity type.
func SpecFor(t types.EntityType) (EntitySpec, bool) {
	s, ok := entitySpecs[t]
	return s, ok
}
