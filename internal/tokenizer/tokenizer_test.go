package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func terms(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Term
	}
	return out
}

func TestTokenizeStemsAndDropsStopWords(t *testing.T) {
	tokens := Tokenize("The Attention mechanism in Transformers")
	assert.Equal(t, []string{"attent", "mechan", "transform"}, terms(tokens))
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
	}
}

func TestTokenizeKeepsUnderscoresAndDigits(t *testing.T) {
	tokens := Tokenize("x_1 and y_i, 2048 dims; 1e9")
	assert.Equal(t, []string{"x_1", "y_i", "2048", "dim", "1e9"}, terms(tokens))
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("the and of --- ..."))
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Recommenders", "recommend", true},
		{"embeddings", "embed", true},
		{"GeLU", "gelu", true},
		{"the", "", false},
		{"", "", false},
		{"you", "you", true},
	}
	for _, tc := range cases {
		got, ok := Normalize(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"sse", "pt", "bert4rec"}, Words("SSE-PT / BERT4Rec"))
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("into"))
	assert.False(t, IsStopWord("attention"))
}

func TestNormalizeUsesPorterStems(t *testing.T) {
	for word, want := range map[string]string{
		"directly":     "directli",
		"mostly":       "mostli",
		"only":         "onli",
		"particularly": "particularli",
		"explicitly":   "explicitli",
		"accordingly":  "accordingli",
	} {
		got, ok := Normalize(word)
		assert.True(t, ok, word)
		assert.Equal(t, want, got, word)
	}
}
