// Package benchmark measures the build and query paths on a synthetic
// corpus shaped like a notebook collection.
package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/builder"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/source"
)

var vocabulary = strings.Fields(`attention encoder decoder transformer session
	recommendation sequential embedding gradient softmax convolution recurrent
	matrix factorization collaborative filtering ranking retrieval negative
	sampling dropout normalization residual activation bahdanau luong gelu`)

func syntheticCorpus(n int) []source.Document {
	docs := make([]source.Document, n)
	for i := range docs {
		title := fmt.Sprintf("%s %s %d", vocabulary[i%len(vocabulary)], vocabulary[(i*7)%len(vocabulary)], i)
		var body strings.Builder
		for w := 0; w < 200; w++ {
			body.WriteString(vocabulary[(i*31+w*17)%len(vocabulary)])
			body.WriteByte(' ')
		}
		docs[i] = source.Document{
			Name:     fmt.Sprintf("C%06d_doc", i),
			Filename: fmt.Sprintf("C%06d_doc.ipynb", i),
			Title:    title,
			Sections: []source.Section{
				{Title: title, Anchor: source.Anchor(title), Level: 1},
				{Title: "Model " + vocabulary[(i*3)%len(vocabulary)], Anchor: "model", Level: 2},
			},
			Body: body.String(),
		}
	}
	return docs
}

func buildIndex(tb testing.TB, docs []source.Document, weighted bool) *index.SearchIndex {
	tb.Helper()
	b := builder.New(weighted)
	for _, doc := range docs {
		if err := b.Add(doc); err != nil {
			tb.Fatal(err)
		}
	}
	return b.Freeze()
}
