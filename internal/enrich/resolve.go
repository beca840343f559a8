// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"net/url"
	"regexp"
	"strings"
)

// IdentifierType classifies a document reference.
type IdentifierType int

const (
	TypeUnknown IdentifierType = iota
	TypeDOI
	TypeArxiv
	TypeURL
)

func (t IdentifierType) String() string {
	switch t {
	case TypeDOI:
		return "doi"
	case TypeArxiv:
		return "arxiv"
	case TypeURL:
		return "url"
	default:
		return "unknown"
	}
}

// arxivPattern matches arXiv IDs: "2301.07041", "arXiv:2301.07041", "2301.07041v2".
var arxivPattern = regexp.MustCompile(`^(?:arXiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

// doiPattern matches bare DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/[^\s]+$`)

// Classify determines the reference type and returns the normalized form:
// bare DOI without resolver prefix, arXiv ID without the "arXiv:" prefix.
func Classify(reference string) (IdentifierType, string) {
	reference = strings.TrimSpace(reference)

	if doi, ok := normalizeDOI(reference); ok {
		return TypeDOI, doi
	}
	if m := arxivPattern.FindStringSubmatch(reference); m != nil {
		return TypeArxiv, m[1]
	}
	if u, err := url.Parse(reference); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return TypeURL, reference
	}
	return TypeUnknown, reference
}

// normalizeDOI strips resolver URL and "doi:" prefixes and reports whether
// the remainder is a DOI.
func normalizeDOI(s string) (string, bool) {
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi:"} {
		if strings.HasPrefix(strings.ToLower(s), prefix) {
			s = s[len(prefix):]
			break
		}
	}
	if doiPattern.MatchString(s) {
		return s, true
	}
	return s, false
}
