// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolver manages the linkage between Symbols and Concepts: the
// REPRESENTS edges that give notation its meanings, the CONFLICTS_WITH edges
// that record notation clashes, and the HAS_INTERPRETATION_IN edges that
// scope a meaning to a Domain.
package resolver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// Resolver traverses and maintains symbol-concept linkage on top of a Store.
type Resolver struct {
	store graph.Store
	log   *zap.Logger
}

// New returns a Resolver. A nil logger discards logs.
func New(store graph.Store, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{store: store, log: log}
}

// Bind links a Symbol to a Concept it represents. The context string says
// where the notation is used that way; confidence is in [0, 1]. Endpoint
// types and the confidence range are checked by the store's validator.
func (r *Resolver) Bind(ctx context.Context, symbolID, conceptID, usageContext string, confidence float64) (*types.Relationship, error) {
	rel := &types.Relationship{
		Type:   types.RelRepresents,
		FromID: symbolID,
		ToID:   conceptID,
		Properties: map[string]any{
			"context":    usageContext,
			"confidence": confidence,
		},
	}
	if _, err := r.store.CreateRelationship(ctx, rel); err != nil {
		return nil, fmt.Errorf("binding symbol %s to concept %s: %w", symbolID, conceptID, err)
	}
	r.log.Info("symbol bound",
		zap.String("symbol", symbolID), zap.String("concept", conceptID),
		zap.Float64("confidence", confidence))
	return rel, nil
}

// ConceptsFor returns the Concepts a Symbol represents.
func (r *Resolver) ConceptsFor(ctx context.Context, symbolID string) ([]types.Entity, error) {
	rels, err := r.store.Neighbors(ctx, symbolID, types.RelRepresents, types.DirectionOutgoing)
	if err != nil {
		return nil, err
	}
	var concepts []types.Entity
	for _, rel := range rels {
		e, err := r.store.GetEntity(ctx, rel.ToID)
		if err != nil {
			return nil, err
		}
		concepts = append(concepts, *e)
	}
	return concepts, nil
}

// SymbolsFor returns the Symbols that represent a Concept.
func (r *Resolver) SymbolsFor(ctx context.Context, conceptID string) ([]types.Entity, error) {
	rels, err := r.store.Neighbors(ctx, conceptID, types.RelRepresents, types.DirectionIncoming)
	if err != nil {
		return nil, err
	}
	var symbols []types.Entity
	for _, rel := range rels {
		e, err := r.store.GetEntity(ctx, rel.FromID)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, *e)
	}
	return symbols, nil
}

// RecordConflict records that two Symbols share notation with different
// meanings. strategy says how readers should disambiguate; canonicalID
// optionally names the preferred symbol; notes is free text.
func (r *Resolver) RecordConflict(ctx context.Context, aID, bID, strategy, canonicalID, notes string) (*types.Relationship, error) {
	props := map[string]any{"resolution_strategy": strategy}
	if canonicalID != "" {
		props["canonical_choice"] = canonicalID
	}
	if notes != "" {
		props["notes"] = notes
	}

	rel := &types.Relationship{
		Type:       types.RelConflictsWith,
		FromID:     aID,
		ToID:       bID,
		Properties: props,
	}
	if _, err := r.store.CreateRelationship(ctx, rel); err != nil {
		return nil, fmt.Errorf("recording conflict between %s and %s: %w", aID, bID, err)
	}
	r.log.Info("conflict recorded",
		zap.String("a", aID), zap.String("b", bID), zap.String("strategy", strategy))
	return rel, nil
}

// Conflicts returns the CONFLICTS_WITH edges touching a Symbol, in either
// direction.
func (r *Resolver) Conflicts(ctx context.Context, symbolID string) ([]types.Relationship, error) {
	return r.store.Neighbors(ctx, symbolID, types.RelConflictsWith, types.DirectionBoth)
}

// Interpret records the domain-specific meaning a Symbol or Concept takes
// inside a Domain. units is optional.
func (r *Resolver) Interpret(ctx context.Context, entityID, domainID, meaning, units string) (*types.Relationship, error) {
	props := map[string]any{"meaning": meaning}
	if units != "" {
		props["units"] = units
	}

	rel := &types.Relationship{
		Type:       types.RelHasInterpretationIn,
		FromID:     entityID,
		ToID:       domainID,
		Properties: props,
	}
	if _, err := r.store.CreateRelationship(ctx, rel); err != nil {
		return nil, fmt.Errorf("recording interpretation of %s in %s: %w", entityID, domainID, err)
	}
	return rel, nil
}

// AuditReport summarizes a linkage audit.
type AuditReport struct {
	// Checked is the number of Symbols examined.
	Checked int `json:"checked"`

	// Unbound lists Symbols with no REPRESENTS edge. Every Symbol should
	// represent at least one Concept; these need binding.
	Unbound []types.Entity `json:"unbound,omitempty"`
}

// auditPageSize bounds memory while paging through Symbols.
const auditPageSize = 200

// Audit walks every Symbol and reports the ones not bound to any Concept.
func (r *Resolver) Audit(ctx context.Context) (*AuditReport, error) {
	report := &AuditReport{}

	for skip := 0; ; skip += auditPageSize {
		symbols, total, err := r.store.ListEntities(ctx, graph.ListOptions{
			Type:  types.EntitySymbol,
			Skip:  skip,
			Limit: auditPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("listing symbols: %w", err)
		}
		for _, sym := range symbols {
			report.Checked++
			rels, err := r.store.Neighbors(ctx, sym.ID, types.RelRepresents, types.DirectionOutgoing)
			if err != nil {
				return nil, fmt.Errorf("auditing symbol %s: %w", sym.ID, err)
			}
			if len(rels) == 0 {
				report.Unbound = append(report.Unbound, sym)
			}
		}
		if skip+len(symbols) >= total || len(symbols) == 0 {
			break
		}
	}

	if len(report.Unbound) > 0 {
		r.log.Warn("unbound symbols found",
			zap.Int("checked", report.Checked), zap.Int("unbound", len(report.Unbound)))
	}
	return report, nil
}
