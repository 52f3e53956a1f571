package builder

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/source"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

func corpus() []source.Document {
	return []source.Document{
		{
			Name:     "L270195_Attention_mechanism",
			Filename: "L270195_Attention_mechanism.ipynb",
			Title:    "Attention mechanism",
			Sections: []source.Section{
				{Title: "Attention mechanism", Anchor: "attention-mechanism", Level: 1},
				{Title: "Bahdanau attention", Anchor: "bahdanau-attention", Level: 2},
			},
			Body: "Attention lets a decoder look at encoder states. Additive attention scores.",
		},
		{
			Name:     "C001344_NARM",
			Filename: "C001344_NARM.ipynb",
			Title:    "NARM",
			Sections: []source.Section{{Title: "NARM", Anchor: "narm", Level: 1}},
			Body:     "NARM uses an encoder with attention for session recommendation.",
		},
		{
			Name:     "C065971_SASRec",
			Filename: "C065971_SASRec.ipynb",
			Title:    "SASRec",
			Body:     "Self-attentive sequential recommendation with a decoder-free encoder.",
		},
	}
}

func build(t *testing.T, weighted bool) *index.SearchIndex {
	t.Helper()
	b := New(weighted)
	for _, doc := range corpus() {
		require.NoError(t, b.Add(doc))
	}
	return b.Freeze()
}

func TestFreezeOrdersDocumentsByName(t *testing.T) {
	idx := build(t, false)
	assert.Equal(t, []string{"C001344_NARM", "C065971_SASRec", "L270195_Attention_mechanism"}, idx.DocNames)
	assert.Equal(t, []string{"NARM", "SASRec", "Attention mechanism"}, idx.Titles)
	assert.Equal(t, "C065971_SASRec.ipynb", idx.Filenames[1])
	assert.NoError(t, idx.Validate())
}

func TestTitleWordsStayOutOfTerms(t *testing.T) {
	idx := build(t, false)

	assert.Equal(t, []int{2}, idx.LookupTitle("attent").Docs())
	assert.Equal(t, []int{2}, idx.LookupTitle("bahdanau").Docs())
	assert.Equal(t, []int{0}, idx.LookupTitle("narm").Docs())

	// "attention" is a heading word of document 2, so only 0 and 1 list it
	// as a body term.
	assert.Equal(t, []int{0, 1}, idx.Lookup("attent").Docs())
	assert.Nil(t, idx.Lookup("narm"))
	assert.Equal(t, []int{0, 1, 2}, idx.Lookup("encod").Docs())
}

func TestAllTitles(t *testing.T) {
	idx := build(t, false)
	assert.Equal(t, []index.TitleRef{{Doc: 2}}, idx.AllTitles["Attention mechanism"])
	assert.Equal(t, []index.TitleRef{{Doc: 2, Anchor: "bahdanau-attention"}}, idx.AllTitles["Bahdanau attention"])
	assert.Equal(t, []index.TitleRef{{Doc: 1}}, idx.AllTitles["SASRec"])
}

func TestWeightedIndex(t *testing.T) {
	idx := build(t, true)
	require.NoError(t, idx.Validate())
	assert.True(t, idx.Weighted())
	assert.Equal(t, 2, idx.Lookup("attent").Weight(0)+idx.Lookup("attent").Weight(1))
	require.Len(t, idx.DocLengths, 3)
	for _, n := range idx.DocLengths {
		assert.Positive(t, n)
	}

	unweighted := build(t, false)
	assert.False(t, unweighted.Weighted())
	assert.Nil(t, unweighted.DocLengths)
}

// Every document containing a token is listed under that token, and every
// listed document contains it.
func TestIndexCoversEveryToken(t *testing.T) {
	idx := build(t, false)
	for _, doc := range corpus() {
		i, ok := idx.DocIndex(doc.Name)
		require.True(t, ok)
		seen := map[string]bool{}
		for _, tok := range tokenizer.Tokenize(doc.TitleText() + "\n" + doc.Body) {
			seen[tok.Term] = true
			found := idx.Lookup(tok.Term).Contains(i) || idx.LookupTitle(tok.Term).Contains(i)
			assert.True(t, found, "document %s missing under %q", doc.Name, tok.Term)
		}
		for term, postings := range idx.Terms {
			if postings.Contains(i) {
				assert.True(t, seen[term], "document %s wrongly listed under %q", doc.Name, term)
			}
		}
		for term, postings := range idx.TitleTerms {
			if postings.Contains(i) {
				assert.True(t, seen[term], "document %s wrongly listed under title %q", doc.Name, term)
			}
		}
	}
}

func TestAddRejectsDuplicatesAndEmptyNames(t *testing.T) {
	b := New(false)
	require.NoError(t, b.Add(source.Document{Name: "a", Body: "x"}))
	err := b.Add(source.Document{Name: "a", Body: "y"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	err = b.Add(source.Document{Filename: "orphan.md"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Equal(t, 1, b.DocCount())
}

func TestConcurrentAdd(t *testing.T) {
	b := New(true)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, b.Add(source.Document{
				Name:  fmt.Sprintf("doc-%02d", i),
				Title: fmt.Sprintf("Doc %d", i),
				Body:  "transformer encoder attention",
			}))
		}(i)
	}
	wg.Wait()

	idx := b.Freeze()
	require.NoError(t, idx.Validate())
	assert.Len(t, idx.Lookup("transform"), 50)
	assert.Equal(t, int64(50*5), b.TokenCount())
}

func TestReset(t *testing.T) {
	b := New(false)
	require.NoError(t, b.Add(source.Document{Name: "a", Body: "x"}))
	b.Reset()
	assert.Equal(t, 0, b.DocCount())
	assert.Equal(t, 0, b.Freeze().NumDocs())
}
