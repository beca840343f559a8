// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tier implements detail-level retrieval over the knowledge graph.
// Every entity sits at one of three tiers: L1 holds a core summary, L2 a
// functional explanation, L3 the complete treatment. Queries either pin an
// exact tier or take everything at or below one.
package tier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// ErrBelowBudget reports a promotion refused because the entity's
// description is too short for the target tier.
var ErrBelowBudget = errors.New("description below tier word budget")

// Budget is the expected description length for a tier, in words. A zero
// Max means unbounded.
type Budget struct {
	Min int
	Max int
}

var budgets = map[types.Tier]Budget{
	types.TierL1: {Min: 100, Max: 200},
	types.TierL2: {Min: 500, Max: 1000},
	types.TierL3: {Min: 2000},
}

// BudgetFor returns the word budget for a tier.
func BudgetFor(t types.Tier) (Budget, bool) {
	b, ok := budgets[t]
	return b, ok
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Engine answers tier-scoped queries on top of a Store.
type Engine struct {
	store graph.Store
	log   *zap.Logger
}

// New returns an Engine. A nil logger discards logs.
func New(store graph.Store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, log: log}
}

// RetrieveOptions scope a retrieval to a detail level.
type RetrieveOptions struct {
	// Level is the requested tier.
	Level types.Tier

	// Cumulative includes every tier at or below Level instead of pinning
	// it exactly.
	Cumulative bool

	// Types restricts results to the given entity types. Empty means all.
	Types []types.EntityType

	// Search adds a name/description text predicate.
	Search string

	Skip  int
	Limit int
}

// Retrieve returns the subgraph at the requested detail level.
func (e *Engine) Retrieve(ctx context.Context, opts RetrieveOptions) (*graph.Subgraph, error) {
	if !opts.Level.Valid() {
		return nil, fmt.Errorf("unknown tier %q", opts.Level)
	}
	return e.store.Query(ctx, graph.QueryParams{
		EntityTypes: opts.Types,
		Tier:        opts.Level,
		Cumulative:  opts.Cumulative,
		Search:      opts.Search,
		Skip:        opts.Skip,
		Limit:       opts.Limit,
	})
}

// Promote raises an entity to a higher tier. The entity's description must
// meet the target tier's minimum word budget; content is written before the
// tier that advertises it.
func (e *Engine) Promote(ctx context.Context, id string, target types.Tier) (*types.Entity, error) {
	budget, ok := BudgetFor(target)
	if !ok {
		return nil, fmt.Errorf("unknown tier %q", target)
	}

	entity, err := e.store.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.Rank() <= entity.Tier.Rank() {
		return nil, fmt.Errorf("entity %s is already at %s; promotion target %s must be higher",
			id, entity.Tier, target)
	}
	if words := WordCount(entity.Description); words < budget.Min {
		return nil, fmt.Errorf("entity %s has %d words, %s needs at least %d: %w",
			id, words, target, budget.Min, ErrBelowBudget)
	}

	updated, err := e.store.UpdateEntity(ctx, id, map[string]any{"tier": string(target)})
	if err != nil {
		return nil, err
	}
	e.log.Info("entity promoted",
		zap.String("id", id), zap.String("from", string(entity.Tier)), zap.String("to", string(target)))
	return updated, nil
}

// Profile is the tier distribution per entity type.
type Profile map[types.EntityType]map[types.Tier]int

// Profile counts entities per (type, tier) pair. Empty combinations are
// omitted.
func (e *Engine) Profile(ctx context.Context) (Profile, error) {
	profile := Profile{}
	for _, entityType := range types.AllEntityTypes() {
		for _, t := range types.AllTiers() {
			_, total, err := e.store.ListEntities(ctx, graph.ListOptions{
				Type:  entityType,
				Tier:  t,
				Limit: 1,
			})
			if err != nil {
				return nil, fmt.Errorf("profiling %s/%s: %w", entityType, t, err)
			}
			if total > 0 {
				if profile[entityType] == nil {
					profile[entityType] = map[types.Tier]int{}
				}
				profile[entityType][t] = total
			}
		}
	}
	return profile, nil
}
