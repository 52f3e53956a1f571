package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
)

func TestSortOrder(t *testing.T) {
	docs := []ScoredDoc{
		{Doc: 3, Title: "b", Score: 5},
		{Doc: 1, Title: "B", Score: 5},
		{Doc: 0, Title: "z", Score: 15},
		{Doc: 2, Title: "a", Score: 5},
		{Doc: 1, Title: "B", Anchor: "x", Score: 5},
	}
	Sort(docs)
	got := make([][2]any, len(docs))
	for i, d := range docs {
		got[i] = [2]any{d.Doc, d.Anchor}
	}
	assert.Equal(t, [][2]any{{0, ""}, {2, ""}, {1, ""}, {1, "x"}, {3, ""}}, got)
}

func TestTitleScore(t *testing.T) {
	s := DefaultScorer
	score, ok := s.TitleScore("attention", "Attention")
	require.True(t, ok)
	assert.Equal(t, 15.0, score)

	score, ok = s.TitleScore("attention", "Bahdanau attention")
	require.True(t, ok)
	assert.Equal(t, 8.0, score)

	_, ok = s.TitleScore("Bahdanau", "Bahdanau attention")
	assert.False(t, ok)

	_, ok = s.TitleScore("narm", "Neural attentive recommendation (NARM)")
	assert.False(t, ok, "query shorter than half the title")

	_, ok = s.TitleScore("gru", "SASRec")
	assert.False(t, ok)

	_, ok = s.TitleScore("  ", "SASRec")
	assert.False(t, ok)
}

func TestBM25(t *testing.T) {
	idx := index.Empty()
	idx.DocNames = []string{"a", "b", "c", "d"}
	idx.Filenames = []string{"a", "b", "c", "d"}
	idx.Titles = []string{"A", "B", "C", "D"}
	idx.DocLengths = []int{10, 10, 40, 20}
	idx.Terms["attent"] = index.Postings{{Doc: 0, Weight: 4}, {Doc: 2, Weight: 4}}
	idx.TitleTerms["attent"] = index.Postings{{Doc: 1}}

	scores := BM25(idx, []string{"attent"}, []int{0, 1, 2}, DefaultScorer)
	require.Len(t, scores, 3)
	assert.Greater(t, scores[0], scores[2], "shorter document ranks higher at equal frequency")
	assert.Greater(t, scores[1], 0.0)
}

func TestComputeIDF(t *testing.T) {
	assert.Greater(t, computeIDF(100, 1), computeIDF(100, 50))
	assert.Greater(t, computeIDF(100, 100), 0.0)
}

func TestComputeTFNormZeroAverage(t *testing.T) {
	assert.Equal(t, 0.0, computeTFNorm(3, 10, 0))
}
