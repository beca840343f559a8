// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich fills Document entity metadata from external catalogs. A
// Document that carries a DOI — as a property or as its provenance source —
// gets title, authors, year, and abstract resolved through OpenAlex.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// ErrNoDOI reports a Document with no resolvable DOI reference.
var ErrNoDOI = errors.New("no DOI reference on document")

// Enricher resolves external metadata for Document entities.
type Enricher struct {
	store  graph.Store
	client *http.Client
	cfg    types.EnrichConfig
	log    *zap.Logger
}

// New returns an Enricher. A nil client gets a default with the configured
// timeout; a nil logger discards logs.
func New(store graph.Store, client *http.Client, cfg types.EnrichConfig, log *zap.Logger) *Enricher {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Enricher{store: store, client: client, cfg: cfg, log: log}
}

// EnrichDocument looks up the Document's DOI and fills the metadata fields
// that are still empty: title, authors, year, abstract, url. Fields already
// populated are left alone. Returns the updated entity.
func (en *Enricher) EnrichDocument(ctx context.Context, id string) (*types.Entity, error) {
	entity, err := en.store.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity.Type != types.EntityDocument {
		return nil, fmt.Errorf("entity %s is a %s, not a Document", id, entity.Type)
	}

	doi, err := documentDOI(entity)
	if err != nil {
		return nil, err
	}

	meta, err := LookupDOI(ctx, en.client, doi, en.cfg.Email, en.cfg.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("enriching document %s: %w", id, err)
	}

	update := map[string]any{}
	if stringPropEmpty(entity, "title") && meta.Title != "" {
		update["title"] = meta.Title
	}
	if listPropEmpty(entity, "authors") && len(meta.Authors) > 0 {
		update["authors"] = meta.Authors
	}
	if stringPropEmpty(entity, "abstract") && meta.Abstract != "" {
		update["abstract"] = meta.Abstract
	}
	if stringPropEmpty(entity, "url") && meta.URL != "" {
		update["url"] = meta.URL
	}
	if _, ok := entity.Properties["year"]; !ok && meta.Year > 0 {
		update["year"] = meta.Year
	}
	if stringPropEmpty(entity, "doi") {
		update["doi"] = meta.DOI
	}

	if len(update) == 0 {
		en.log.Debug("document already complete", zap.String("id", id))
		return entity, nil
	}

	updated, err := en.store.UpdateEntity(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("enriching document %s: %w", id, err)
	}
	en.log.Info("document enriched",
		zap.String("id", id), zap.String("doi", doi), zap.Int("fields", len(update)))
	return updated, nil
}

// documentDOI finds the DOI reference on a Document: the doi property
// first, then the provenance source.
func documentDOI(entity *types.Entity) (string, error) {
	if raw, ok := entity.Properties["doi"].(string); ok && raw != "" {
		if t, normalized := Classify(raw); t == TypeDOI {
			return normalized, nil
		}
	}
	if entity.Provenance != nil && entity.Provenance.Source != "" {
		if t, normalized := Classify(entity.Provenance.Source); t == TypeDOI {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("document %s: %w", entity.ID, ErrNoDOI)
}

func stringPropEmpty(entity *types.Entity, key string) bool {
	s, ok := entity.Properties[key].(string)
	return !ok || s == ""
}

func listPropEmpty(entity *types.Entity, key string) bool {
	switch v := entity.Properties[key].(type) {
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return true
	}
}
