package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

type staticSource struct {
	idx *index.SearchIndex
}

func (s staticSource) Current() *index.SearchIndex { return s.idx }

func testIndex() *index.SearchIndex {
	idx := index.Empty()
	idx.DocNames = []string{"C001344_NARM", "C065971_SASRec", "L270195_Attention_mechanism"}
	idx.Filenames = []string{"C001344_NARM.ipynb", "C065971_SASRec.ipynb", "L270195_Attention_mechanism.ipynb"}
	idx.Titles = []string{"NARM", "SASRec", "Attention mechanism"}
	idx.Terms = map[string]index.Postings{
		"attent":    {{Doc: 0}, {Doc: 1}},
		"encod":     {{Doc: 0}, {Doc: 1}, {Doc: 2}},
		"recommend": {{Doc: 0}, {Doc: 1}},
		"session":   {{Doc: 0}},
		"sequenti":  {{Doc: 1}},
		"nn":        {{Doc: 1}},
	}
	idx.TitleTerms = map[string]index.Postings{
		"attent":   {{Doc: 2}},
		"mechan":   {{Doc: 2}},
		"bahdanau": {{Doc: 2}},
		"narm":     {{Doc: 0}},
		"sasrec":   {{Doc: 1}},
	}
	idx.AllTitles = map[string][]index.TitleRef{
		"NARM":                {{Doc: 0}},
		"SASRec":              {{Doc: 1}},
		"Attention mechanism": {{Doc: 2}},
		"Bahdanau attention":  {{Doc: 2, Anchor: "bahdanau-attention"}},
	}
	return idx
}

func newExecutor(idx *index.SearchIndex, ranking string) *Executor {
	return New(staticSource{idx: idx}, config.SearchConfig{
		MaxResults:   100,
		DefaultLimit: 10,
		Ranking:      ranking,
	})
}

func run(t *testing.T, e *Executor, query string) *SearchResult {
	t.Helper()
	res, err := e.Execute(context.Background(), parser.Parse(query), 0)
	require.NoError(t, err)
	return res
}

func TestExecuteTermAndTitleMatches(t *testing.T) {
	res := run(t, newExecutor(testIndex(), RankingWidget), "attention")
	require.Len(t, res.Results, 4)
	assert.Equal(t, 4, res.TotalHits)
	assert.Equal(t, RankingWidget, res.Ranking)

	top := res.Results[0]
	assert.Equal(t, "L270195_Attention_mechanism", top.DocName)
	assert.Equal(t, 15.0, top.Score)

	section := res.Results[1]
	assert.Equal(t, 2, section.Doc)
	assert.Equal(t, "bahdanau-attention", section.Anchor)
	assert.Equal(t, "Attention mechanism > Bahdanau attention", section.Title)
	assert.Equal(t, 8.0, section.Score)
	assert.Equal(t, ranker.KindTitle, section.Kind)

	assert.Equal(t, "NARM", res.Results[2].Title)
	assert.Equal(t, "SASRec", res.Results[3].Title)
	assert.Equal(t, 5.0, res.Results[3].Score)
}

func TestExecuteExactDocumentTitleWins(t *testing.T) {
	res := run(t, newExecutor(testIndex(), RankingWidget), "SASRec")
	require.Len(t, res.Results, 1)
	assert.Equal(t, 16.0, res.Results[0].Score)
	assert.Equal(t, ranker.KindTitle, res.Results[0].Kind)
	assert.Equal(t, "C065971_SASRec.ipynb", res.Results[0].Filename)
}

func TestExecuteExclusion(t *testing.T) {
	res := run(t, newExecutor(testIndex(), RankingWidget), "recommend -sequential")
	require.Len(t, res.Results, 1)
	assert.Equal(t, 0, res.Results[0].Doc)
}

func TestExecutePartialMatch(t *testing.T) {
	res := run(t, newExecutor(testIndex(), RankingWidget), "mech")
	require.Len(t, res.Results, 1)
	assert.Equal(t, 2, res.Results[0].Doc)
	assert.Equal(t, 7.0, res.Results[0].Score)
}

func TestExecuteRequiresEveryTerm(t *testing.T) {
	res := run(t, newExecutor(testIndex(), RankingWidget), "attention session")
	require.Len(t, res.Results, 1)
	assert.Equal(t, 0, res.Results[0].Doc)
}

func TestExecuteShortTermsAreOptional(t *testing.T) {
	e := newExecutor(testIndex(), RankingWidget)
	plan := &parser.QueryPlan{Terms: []string{"zz", "attent"}, RawQuery: "-"}
	res, err := e.Execute(context.Background(), plan, 0)
	require.NoError(t, err)
	assert.Len(t, res.Results, 3)

	plan = &parser.QueryPlan{Terms: []string{"nn"}, RawQuery: "-"}
	res, err = e.Execute(context.Background(), plan, 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, 1, res.Results[0].Doc)

	plan = &parser.QueryPlan{Terms: []string{"nn", "zz"}, RawQuery: "-"}
	res, err = e.Execute(context.Background(), plan, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestExecuteNoMatches(t *testing.T) {
	res := run(t, newExecutor(testIndex(), RankingWidget), "quantum")
	assert.Empty(t, res.Results)
	assert.Zero(t, res.TotalHits)
	assert.Equal(t, 0, res.TermStats["quantum"])
}

func TestExecuteEmptyQuery(t *testing.T) {
	res := run(t, newExecutor(testIndex(), RankingWidget), "  ")
	assert.Empty(t, res.Results)
}

func TestExecuteWithoutIndex(t *testing.T) {
	_, err := newExecutor(nil, RankingWidget).Execute(context.Background(), parser.Parse("narm"), 0)
	assert.True(t, errors.Is(err, apperrors.ErrIndexNotLoaded))
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newExecutor(testIndex(), RankingWidget).Execute(ctx, parser.Parse("attention"), 0)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExecuteLimit(t *testing.T) {
	e := newExecutor(testIndex(), RankingWidget)
	res, err := e.Execute(context.Background(), parser.Parse("attention"), 2)
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
	assert.Equal(t, 4, res.TotalHits)

	assert.Equal(t, 10, e.Limit(0))
	assert.Equal(t, 100, e.Limit(5000))
	assert.Equal(t, 7, e.Limit(7))
}

func TestExecuteBM25(t *testing.T) {
	idx := testIndex()
	res := run(t, newExecutor(idx, RankingBM25), "encoder")
	assert.Equal(t, RankingWidget, res.Ranking, "unweighted index falls back to widget scoring")

	idx = testIndex()
	idx.Terms["encod"] = index.Postings{{Doc: 1, Weight: 2}, {Doc: 2, Weight: 6}}
	idx.DocLengths = []int{30, 30, 30}
	res = run(t, newExecutor(idx, RankingBM25), "encoder")
	assert.Equal(t, RankingBM25, res.Ranking)
	require.Len(t, res.Results, 2)
	assert.Equal(t, 2, res.Results[0].Doc, "higher term frequency ranks first")
	assert.Equal(t, 1, res.Results[1].Doc)
	assert.Greater(t, res.Results[0].Score, res.Results[1].Score)
}

// testdata/searchindex.js is an index written by the documentation generator.
func TestQueriesMatchGeneratorStems(t *testing.T) {
	idx, _, err := artifact.Load("testdata/searchindex.js")
	require.NoError(t, err)

	for _, word := range []string{"mostly", "directly", "only", "particularly", "explicitly", "accordingly"} {
		plan := parser.Parse(word)
		require.Len(t, plan.Terms, 1, word)
		assert.NotEmpty(t, idx.Lookup(plan.Terms[0]), "%s -> %s", word, plan.Terms[0])
	}

	res := run(t, newExecutor(idx, RankingWidget), "mostly")
	var names []string
	for _, r := range res.Results {
		names = append(names, r.DocName)
	}
	assert.Contains(t, names, "C655229_SSE_PT")
}
