// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/knowledge-engine/internal/graph"
	"github.com/pdiddy/knowledge-engine/internal/httputil"
	"github.com/pdiddy/knowledge-engine/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in       string
		wantType IdentifierType
		wantNorm string
	}{
		{"10.1145/1234567.1234568", TypeDOI, "10.1145/1234567.1234568"},
		{"https://doi.org/10.1145/1234567.1234568", TypeDOI, "10.1145/1234567.1234568"},
		{"doi:10.48550/arXiv.1706.03762", TypeDOI, "10.48550/arXiv.1706.03762"},
		{"2301.07041", TypeArxiv, "2301.07041"},
		{"arXiv:2301.07041v2", TypeArxiv, "2301.07041v2"},
		{"https://example.com/paper.pdf", TypeURL, "https://example.com/paper.pdf"},
		{"not an identifier", TypeUnknown, "not an identifier"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			gotType, gotNorm := Classify(tt.in)
			assert.Equal(t, tt.wantType, gotType)
			assert.Equal(t, tt.wantNorm, gotNorm)
		})
	}
}

const sampleWork = `{
	"id": "https://openalex.org/W2741809807",
	"title": "Attention Is All You Need",
	"doi": "https://doi.org/10.48550/arXiv.1706.03762",
	"publication_year": 2017,
	"authorships": [
		{"author": {"display_name": "Ashish Vaswani"}},
		{"author": {"display_name": "Noam Shazeer"}}
	],
	"abstract_inverted_index": {"dominant": [2], "The": [0], "sequence": [3], "models": [4], "are": [1]},
	"open_access": {"is_oa": true, "oa_url": "https://arxiv.org/abs/1706.03762"}
}`

func openAlexServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	orig := openAlexWorksBase
	openAlexWorksBase = srv.URL + "/works"
	t.Cleanup(func() { openAlexWorksBase = orig })
}

func TestLookupDOI(t *testing.T) {
	var gotPath, gotMailto string
	openAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMailto = r.URL.Query().Get("mailto")
		fmt.Fprint(w, sampleWork)
	})

	meta, err := LookupDOI(context.Background(), http.DefaultClient,
		"10.48550/arXiv.1706.03762", "lab@example.com", "knowledge-engine/0.1")
	require.NoError(t, err)

	assert.Contains(t, gotPath, "doi.org")
	assert.Equal(t, "lab@example.com", gotMailto)
	assert.Equal(t, "Attention Is All You Need", meta.Title)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, meta.Authors)
	assert.Equal(t, 2017, meta.Year)
	assert.Equal(t, "10.48550/arXiv.1706.03762", meta.DOI)
	assert.Equal(t, "The are dominant sequence models", meta.Abstract)
	assert.Equal(t, "https://arxiv.org/abs/1706.03762", meta.URL)
}

func TestLookupDOIRetriesOnRateLimit(t *testing.T) {
	origDelay := httputil.RetryBaseDelay
	httputil.RetryBaseDelay = 10 * time.Millisecond
	t.Cleanup(func() { httputil.RetryBaseDelay = origDelay })

	calls := 0
	openAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, sampleWork)
	})

	meta, err := LookupDOI(context.Background(), http.DefaultClient,
		"10.48550/arXiv.1706.03762", "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2017, meta.Year)
}

func TestLookupDOINotFound(t *testing.T) {
	openAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := LookupDOI(context.Background(), http.DefaultClient, "10.1/missing", "", "")
	assert.ErrorContains(t, err, "not found")
}

func testEnricher(t *testing.T) (*Enricher, graph.Store) {
	t.Helper()
	store, err := graph.NewSQLite(filepath.Join(t.TempDir(), "graph.db"), graph.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(context.Background()) })
	return New(store, http.DefaultClient, types.EnrichConfig{}, nil), store
}

func TestEnrichDocument(t *testing.T) {
	openAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleWork)
	})
	en, store := testEnricher(t)
	ctx := context.Background()

	id, err := store.CreateEntity(ctx, &types.Entity{
		Type: types.EntityDocument,
		Name: "attention-is-all-you-need",
		Tier: types.TierL1,
		Properties: map[string]any{
			"title":   "Attention Is All You Need",
			"authors": []string{"Ashish Vaswani"},
			"doi":     "https://doi.org/10.48550/arXiv.1706.03762",
		},
	})
	require.NoError(t, err)

	updated, err := en.EnrichDocument(ctx, id)
	require.NoError(t, err)

	// Empty fields are filled; existing ones are kept.
	assert.Equal(t, "Attention Is All You Need", updated.Properties["title"])
	assert.Equal(t, "The are dominant sequence models", updated.Properties["abstract"])
	assert.EqualValues(t, 2017, graphNumber(updated.Properties["year"]))
	assert.Equal(t, 2, updated.Version)

	authors, ok := updated.Properties["authors"].([]any)
	require.True(t, ok)
	assert.Len(t, authors, 1, "existing authors list is not overwritten")
}

func TestEnrichDocumentDOIFromProvenance(t *testing.T) {
	openAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleWork)
	})
	en, store := testEnricher(t)
	ctx := context.Background()

	id, err := store.CreateEntity(ctx, &types.Entity{
		Type: types.EntityDocument,
		Name: "transformer-paper",
		Tier: types.TierL1,
		Properties: map[string]any{
			"title":   "placeholder",
			"authors": []string{"unknown"},
		},
		Provenance: &types.Provenance{Source: "10.48550/arXiv.1706.03762"},
	})
	require.NoError(t, err)

	updated, err := en.EnrichDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "10.48550/arXiv.1706.03762", updated.Properties["doi"])
}

func TestEnrichDocumentErrors(t *testing.T) {
	en, store := testEnricher(t)
	ctx := context.Background()

	_, err := en.EnrichDocument(ctx, "missing")
	assert.ErrorIs(t, err, graph.ErrNotFound)

	conceptID, err := store.CreateEntity(ctx, &types.Entity{
		Type: types.EntityConcept,
		Name: "entropy",
		Tier: types.TierL1,
	})
	require.NoError(t, err)
	_, err = en.EnrichDocument(ctx, conceptID)
	assert.ErrorContains(t, err, "not a Document")

	docID, err := store.CreateEntity(ctx, &types.Entity{
		Type: types.EntityDocument,
		Name: "no-doi",
		Tier: types.TierL1,
		Properties: map[string]any{
			"title":   "No DOI Here",
			"authors": []string{"Someone"},
		},
	})
	require.NoError(t, err)
	_, err = en.EnrichDocument(ctx, docID)
	assert.True(t, errors.Is(err, ErrNoDOI))
}

func graphNumber(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return -1
	}
}
