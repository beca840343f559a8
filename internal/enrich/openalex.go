// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/knowledge-engine/internal/httputil"
)

// openAlexWorksBase is the OpenAlex Works endpoint. Declared as a var so
// tests can substitute an httptest server.
var openAlexWorksBase = "https://api.openalex.org/works"

// DocumentMeta is the metadata OpenAlex resolves for a DOI.
type DocumentMeta struct {
	Title    string
	Authors  []string
	Year     int
	DOI      string
	Abstract string
	URL      string
}

// LookupDOI fetches work metadata for a bare DOI. email is sent as the
// mailto parameter for polite pool access; empty skips it.
func LookupDOI(ctx context.Context, client *http.Client, doi, email, userAgent string) (*DocumentMeta, error) {
	reqURL := openAlexWorksBase + "/https://doi.org/" + url.PathEscape(doi)
	if email != "" {
		reqURL += "?mailto=" + url.QueryEscape(email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("DOI %s not found in OpenAlex", doi)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	var work openAlexWork
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	meta := &DocumentMeta{
		Title:    work.Title,
		Year:     work.PublicationYear,
		Abstract: reconstructAbstract(work.AbstractInvertedIndex),
	}
	for _, authorship := range work.Authorships {
		if authorship.Author.DisplayName != "" {
			meta.Authors = append(meta.Authors, authorship.Author.DisplayName)
		}
	}
	// OpenAlex reports DOIs as resolver URLs; keep the bare form.
	if work.DOI != "" {
		meta.DOI = strings.TrimPrefix(work.DOI, "https://doi.org/")
	} else {
		meta.DOI = doi
	}
	if work.OpenAccess.OAURL != "" {
		meta.URL = work.OpenAccess.OAURL
	} else if work.ID != "" {
		meta.URL = work.ID
	}
	return meta, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to the positions where it
// appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	OpenAccess            openAlexOpenAccess   `json:"open_access"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexOpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}
