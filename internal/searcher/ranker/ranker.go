// Package ranker scores documents for a query. The default scorer reproduces
// the client-side search widget; BM25 is available for weighted indexes.
package ranker

import (
	"math"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

// Kind says which lookup produced a result.
type Kind string

const (
	KindText  Kind = "text"
	KindTitle Kind = "title"
)

// Scorer holds the per-match scores used by the widget.
type Scorer struct {
	Title        float64
	PartialTitle float64
	Term         float64
	PartialTerm  float64
}

var DefaultScorer = Scorer{
	Title:        15,
	PartialTitle: 7,
	Term:         5,
	PartialTerm:  2,
}

type ScoredDoc struct {
	Doc      int     `json:"doc"`
	DocName  string  `json:"docname"`
	Filename string  `json:"filename"`
	Title    string  `json:"title"`
	Anchor   string  `json:"anchor,omitempty"`
	Score    float64 `json:"score"`
	Kind     Kind    `json:"kind"`
}

// Less orders results best first: higher score, then title ignoring case,
// then document index, then anchor.
func Less(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	at, bt := strings.ToLower(a.Title), strings.ToLower(b.Title)
	if at != bt {
		return at < bt
	}
	if a.Doc != b.Doc {
		return a.Doc < b.Doc
	}
	return a.Anchor < b.Anchor
}

func Sort(docs []ScoredDoc) {
	sort.SliceStable(docs, func(i, j int) bool { return Less(docs[i], docs[j]) })
}

// TitleScore scores a query against one entry of alltitles. The title must
// contain the query and the query must cover at least half of it.
func (s Scorer) TitleScore(query, title string) (float64, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(strings.TrimSpace(title))
	if q == "" || t == "" || !strings.Contains(t, q) {
		return 0, false
	}
	ql, tl := len([]rune(q)), len([]rune(title))
	if 2*ql < tl {
		return 0, false
	}
	return math.Round(s.Title * float64(ql) / float64(tl)), true
}

type RankParams struct {
	TotalDocs    int64
	AvgDocLength float64
}

// BM25 scores candidates against terms using the weighted postings of idx.
// A match in titleterms counts as one occurrence boosted by the ratio of the
// title and term scores.
func BM25(idx *index.SearchIndex, terms []string, candidates []int, s Scorer) map[int]float64 {
	params := RankParams{
		TotalDocs:    int64(idx.NumDocs()),
		AvgDocLength: idx.AvgDocLength(),
	}
	titleBoost := 1.0
	if s.Term > 0 {
		titleBoost = s.Title / s.Term
	}
	scores := make(map[int]float64, len(candidates))
	for _, term := range terms {
		postings := idx.Lookup(term)
		titlePostings := idx.LookupTitle(term)
		idf := computeIDF(params.TotalDocs, int64(len(postings)+len(titlePostings)))
		for _, doc := range candidates {
			docLen := float64(idx.DocLength(doc))
			if tf := postings.Weight(doc); tf > 0 {
				scores[doc] += idf * computeTFNorm(float64(tf), docLen, params.AvgDocLength)
			}
			if titlePostings.Contains(doc) {
				scores[doc] += titleBoost * idf * computeTFNorm(1, docLen, params.AvgDocLength)
			}
		}
	}
	for doc, score := range scores {
		scores[doc] = math.Round(score*10000) / 10000
	}
	return scores
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
