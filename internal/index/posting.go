package index

import (
	"fmt"
	"sort"
)

// Posting is one document a term occurs in. Weight is the term frequency
// when the index was built with weights and zero otherwise.
type Posting struct {
	Doc    int
	Weight int
}

// Postings is kept sorted by Doc with no duplicates.
type Postings []Posting

// Docs returns the document indices in order.
func (p Postings) Docs() []int {
	docs := make([]int, len(p))
	for i, posting := range p {
		docs[i] = posting.Doc
	}
	return docs
}

// Weighted reports whether the postings carry term-frequency weights.
func (p Postings) Weighted() bool {
	return len(p) > 0 && p[0].Weight > 0
}

// Contains reports whether doc appears in the postings.
func (p Postings) Contains(doc int) bool {
	i := sort.Search(len(p), func(i int) bool { return p[i].Doc >= doc })
	return i < len(p) && p[i].Doc == doc
}

// Weight returns the weight recorded for doc, or zero.
func (p Postings) Weight(doc int) int {
	i := sort.Search(len(p), func(i int) bool { return p[i].Doc >= doc })
	if i < len(p) && p[i].Doc == doc {
		return p[i].Weight
	}
	return 0
}

// Normalize sorts by Doc and merges duplicates, summing their weights.
func (p Postings) Normalize() Postings {
	if len(p) == 0 {
		return p
	}
	sorted := make(Postings, len(p))
	copy(sorted, p)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Doc < sorted[j].Doc })
	out := sorted[:1]
	for _, posting := range sorted[1:] {
		last := &out[len(out)-1]
		if posting.Doc == last.Doc {
			last.Weight += posting.Weight
			continue
		}
		out = append(out, posting)
	}
	return out
}

// check verifies ordering, uniqueness and consistent weighting.
func (p Postings) check(numDocs int) error {
	weighted := p.Weighted()
	for i, posting := range p {
		if posting.Doc < 0 || posting.Doc >= numDocs {
			return fmt.Errorf("document index %d out of range [0,%d)", posting.Doc, numDocs)
		}
		if i > 0 && posting.Doc <= p[i-1].Doc {
			return fmt.Errorf("postings not strictly increasing at position %d (%d after %d)", i, posting.Doc, p[i-1].Doc)
		}
		if weighted != (posting.Weight > 0) {
			return fmt.Errorf("mixed weighted and unweighted postings at document %d", posting.Doc)
		}
	}
	return nil
}

// wireValue returns the compact form: a bare index for a single unweighted
// document, a list of indices, or a list of [index, weight] pairs.
func (p Postings) wireValue() any {
	if p.Weighted() {
		pairs := make([]any, len(p))
		for i, posting := range p {
			pairs[i] = []int{posting.Doc, posting.Weight}
		}
		return pairs
	}
	if len(p) == 1 {
		return p[0].Doc
	}
	return p.Docs()
}

func postingsFromWire(v any) (Postings, error) {
	switch val := v.(type) {
	case int:
		return Postings{{Doc: val}}, nil
	case []any:
		out := make(Postings, 0, len(val))
		for _, item := range val {
			switch entry := item.(type) {
			case int:
				out = append(out, Posting{Doc: entry})
			case []any:
				if len(entry) != 2 {
					return nil, fmt.Errorf("weighted posting must have 2 elements, got %d", len(entry))
				}
				doc, ok1 := entry[0].(int)
				weight, ok2 := entry[1].(int)
				if !ok1 || !ok2 {
					return nil, fmt.Errorf("weighted posting must contain integers, got %v", entry)
				}
				if weight < 1 {
					return nil, fmt.Errorf("weight for document %d must be positive, got %d", doc, weight)
				}
				out = append(out, Posting{Doc: doc, Weight: weight})
			default:
				return nil, fmt.Errorf("unexpected posting element %T", item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected postings value %T", v)
	}
}
