// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema validates entities and relationships against the knowledge
// graph schema before they are persisted.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// labelPattern restricts type names to what can be safely interpolated into
// Cypher as a label. Labels cannot be bound as query parameters.
var labelPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidLabel reports whether s is safe to use as a Cypher label or
// relationship type.
func ValidLabel(s string) bool {
	return labelPattern.MatchString(s)
}

// ValidationError collects the problems found in a single payload.
type ValidationError struct {
	// Subject describes what was validated, e.g. `entity "gradient"`.
	Subject string

	// Problems lists each violation in plain language.
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, strings.Join(e.Problems, "; "))
}

// Validator checks payloads against the entity and relationship schemas.
// The zero value validates; use NewValidator to honor the config switch.
type Validator struct {
	disabled bool
}

// NewValidator returns a Validator. When enabled is false every check
// passes, matching the schema_validation config switch.
func NewValidator(enabled bool) *Validator {
	return &Validator{disabled: !enabled}
}

// ValidateEntity checks an entity's type, name, tier, and typed properties.
func (v *Validator) ValidateEntity(e *types.Entity) error {
	if v.disabled {
		return nil
	}

	var problems []string

	spec, known := SpecFor(e.Type)
	if !known {
		problems = append(problems, fmt.Sprintf("unknown entity type %q", e.Type))
	}
	if !ValidLabel(string(e.Type)) {
		problems = append(problems, fmt.Sprintf("entity type %q is not a valid label", e.Type))
	}
	if strings.TrimSpace(e.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !e.Tier.Valid() {
		problems = append(problems, fmt.Sprintf("tier %q is not one of L1, L2, L3", e.Tier))
	}

	if known {
		for _, p := range spec.Required {
			val, ok := e.Properties[p.Name]
			if !ok {
				problems = append(problems, fmt.Sprintf("missing required property %q", p.Name))
				continue
			}
			if !kindMatches(p.Kind, val) {
				problems = append(problems, fmt.Sprintf("property %q must be a %s", p.Name, p.Kind))
			}
		}
		for _, p := range spec.Optional {
			if val, ok := e.Properties[p.Name]; ok && !kindMatches(p.Kind, val) {
				problems = append(problems, fmt.Sprintf("property %q must be a %s", p.Name, p.Kind))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Subject: fmt.Sprintf("entity %q", e.Name), Problems: problems}
	}
	return nil
}

// ValidateRelationship checks the relationship type, the endpoint type pair,
// and the type's required properties. fromType and toType are the entity
// types of the already-resolved endpoints.
func (v *Validator) ValidateRelationship(r *types.Relationship, fromType, toType types.EntityType) error {
	if v.disabled {
		return nil
	}

	var problems []string

	if _, known := PairsFor(r.Type); !known {
		problems = append(problems, fmt.Sprintf("unknown relationship type %q", r.Type))
	} else if !ValidPair(r.Type, fromType, toType) {
		problems = append(problems, fmt.Sprintf("%s is not valid from %s to %s", r.Type, fromType, toType))
	}
	if !ValidLabel(string(r.Type)) {
		problems = append(problems, fmt.Sprintf("relationship type %q is not a valid label", r.Type))
	}

	for _, name := range requiredRelProps[r.Type] {
		if _, ok := r.Properties[name]; !ok {
			problems = append(problems, fmt.Sprintf("missing required property %q", name))
		}
	}

	if r.Type == types.RelRepresents {
		if c, ok := r.Properties["confidence"]; ok {
			f, isNum := toFloat(c)
			if !isNum || f < 0 || f > 1 {
				problems = append(problems, "confidence must be a number in [0, 1]")
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{
			Subject:  fmt.Sprintf("relationship %s -> %s", r.FromID, r.ToID),
			Problems: problems,
		}
	}
	return nil
}

func kindMatches(k PropKind, val any) bool {
	switch k {
	case KindString:
		s, ok := val.(string)
		return ok && s != ""
	case KindNumber:
		_, ok := toFloat(val)
		return ok
	case KindStringList:
		switch list := val.(type) {
		case []string:
			return true
		case []any:
			for _, item := range list {
				if _, ok := item.(string); !ok {
					return false
				}
			}
			return true
		default:
			return false
		}
	default:
		return false
	}
}

// toFloat accepts the numeric types JSON and YAML decoders produce.
func toFloat(val any) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
