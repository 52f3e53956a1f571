// Package merger combines term and title hits into a single ranked page.
package merger

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/ranker"
)

const defaultLimit = 10

type hitKey struct {
	doc    int
	anchor string
}

// Merge deduplicates hits by document and anchor, keeping the better hit, and
// returns the best limit of them in ranking order together with the number of
// distinct hits.
func Merge(groups [][]ranker.ScoredDoc, limit int) ([]ranker.ScoredDoc, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	index := make(map[hitKey]int)
	var hits []ranker.ScoredDoc
	for _, group := range groups {
		for _, hit := range group {
			k := hitKey{doc: hit.Doc, anchor: hit.Anchor}
			i, seen := index[k]
			switch {
			case !seen:
				index[k] = len(hits)
				hits = append(hits, hit)
			case ranker.Less(hit, hits[i]):
				hits[i] = hit
			}
		}
	}
	total := len(hits)
	slices.SortFunc(hits, compare)
	if len(hits) > limit {
		hits = hits[:limit:limit]
	}
	return hits, total
}

func compare(a, b ranker.ScoredDoc) int {
	switch {
	case ranker.Less(a, b):
		return -1
	case ranker.Less(b, a):
		return 1
	}
	return 0
}
