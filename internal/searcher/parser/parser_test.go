package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		query   string
		terms   []string
		exclude []string
	}{
		{"plain words", "attention mechanisms", []string{"attent", "mechan"}, []string{}},
		{"stop words and numbers dropped", "the transformer in 2017", []string{"transform"}, []string{}},
		{"exclusion", "recommenders -sequential", []string{"recommend"}, []string{"sequenti"}},
		{"duplicates collapse", "Attention attention ATTENTION", []string{"attent"}, []string{}},
		{"punctuation splits", "self-attention", []string{"self", "attent"}, []string{}},
		{"empty", "   ", []string{}, []string{}},
		{"only stop words", "the and of", []string{}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := Parse(tc.query)
			assert.Equal(t, tc.terms, plan.Terms)
			assert.Equal(t, tc.exclude, plan.ExcludeTerms)
			assert.Equal(t, tc.query, plan.RawQuery)
		})
	}
}

func TestHighlightKeepsTypedWords(t *testing.T) {
	plan := Parse("Transformers -GRU4Rec")
	assert.Equal(t, []string{"transformers"}, plan.Highlight)
}

func TestEmpty(t *testing.T) {
	assert.True(t, Parse("").Empty())
	assert.False(t, Parse("the").Empty())
	assert.False(t, Parse("bert4rec").Empty())
}
