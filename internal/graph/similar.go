// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/knowledge-engine/pkg/types"
)

// Similarity weights. Name resemblance dominates, then description, with
// small contributions from tier equality and shared relationships.
const (
	simNameWeight = 0.4
	simDescWeight = 0.3
	simTierWeight = 0.1
	simRelWeight  = 0.2
)

// similarPageSize bounds memory while paging through candidates.
const similarPageSize = 200

// similarEntities scores every entity of the same type against the target:
// Jaro-Winkler over name and description, tier equality, and Jaccard overlap
// of (relationship type, neighbor) pairs. Both backends share this scoring
// so a backend switch never reorders results.
func similarEntities(ctx context.Context, s Store, id string, minScore float64, limit int) ([]SearchHit, error) {
	target, err := s.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	targetNeighbors, err := neighborSet(ctx, s, id)
	if err != nil {
		return nil, err
	}

	var hits []SearchHit
	for skip := 0; ; skip += similarPageSize {
		candidates, total, err := s.ListEntities(ctx, ListOptions{
			Type:  target.Type,
			Skip:  skip,
			Limit: similarPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("listing %s candidates: %w", target.Type, err)
		}

		for i := range candidates {
			cand := candidates[i]
			if cand.ID == id {
				continue
			}
			candNeighbors, err := neighborSet(ctx, s, cand.ID)
			if err != nil {
				return nil, err
			}

			score := simNameWeight*jaroWinkler(target.Name, cand.Name) +
				simDescWeight*jaroWinkler(target.Description, cand.Description) +
				simRelWeight*jaccard(targetNeighbors, candNeighbors)
			if target.Tier == cand.Tier {
				score += simTierWeight
			}

			if score >= minScore {
				hits = append(hits, SearchHit{Entity: cand, Score: score})
			}
		}

		if skip+len(candidates) >= total || len(candidates) == 0 {
			break
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// neighborSet returns the (relationship type, far endpoint) pairs touching
// an entity.
func neighborSet(ctx context.Context, s Store, id string) (map[string]bool, error) {
	rels, err := s.Neighbors(ctx, id, "", types.DirectionBoth)
	if err != nil {
		return nil, fmt.Errorf("fetching neighbors of %s: %w", id, err)
	}
	set := make(map[string]bool, len(rels))
	for _, r := range rels {
		far := r.ToID
		if far == id {
			far = r.FromID
		}
		set[string(r.Type)+"|"+far] = true
	}
	return set, nil
}

// jaccard is intersection over union of two sets. Two empty sets score 0,
// not 1: entities with no relationships tell us nothing about each other.
func jaccard(a, b map[string]bool) float64 {
	common := 0
	for k := range a {
		if b[k] {
			common++
		}
	}
	union := len(a) + len(b) - common
	if union == 0 {
		return 0
	}
	return float64(common) / float64(union)
}

// jaroWinkler is Jaro similarity with the Winkler common-prefix boost,
// case-folded. Returns 1 for identical strings, 0 for no resemblance.
func jaroWinkler(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	j := jaro(ra, rb)
	if j < 0.7 {
		return j
	}
	prefix := 0
	for prefix < len(ra) && prefix < len(rb) && prefix < 4 && ra[prefix] == rb[prefix] {
		prefix++
	}
	return j + float64(prefix)*0.1*(1-j)
}

func jaro(a, b []rune) float64 {
	if len(a) == 0 || len(b) == 0 {
		if len(a) == len(b) {
			return 1
		}
		return 0
	}

	window := max(len(a), len(b))/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0
	for i := range a {
		lo := max(0, i-window)
		hi := min(len(b), i+window+1)
		for j := lo; j < hi; j++ {
			if !bMatched[j] && a[i] == b[j] {
				aMatched[i] = true
				bMatched[j] = true
				matches++
				break
			}
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	j := 0
	for i := range a {
		if !aMatched[i] {
			continue
		}
		for !bMatched[j] {
			j++
		}
		if a[i] != b[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	return (m/float64(len(a)) + m/float64(len(b)) + (m-float64(transpositions)/2)/m) / 3
}
