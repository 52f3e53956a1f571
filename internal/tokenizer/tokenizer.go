// Package tokenizer provides text tokenisation for the search index.
// It lower-cases input, splits on non-word boundaries, removes English
// stop-words, and stems with the original Porter algorithm, which is what the
// documentation generator and its search widget use ("mostly" -> "mostli").
package tokenizer

import (
	"strings"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// stopWords is the list the documentation generator applies to English
// content. The search widget filters queries with the same list.
var stopWords = map[string]struct{}{
	"a": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {},
	"for": {},
	"if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"near": {}, "no": {}, "not": {},
	"of": {}, "on": {}, "or": {},
	"such": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {},
	"was": {}, "will": {}, "with": {},
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// IsStopWord reports whether the lower-cased word is an English stop-word.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// Words splits text into lower-cased words. Letters, digits, combining marks
// and underscores are word characters; everything else separates words.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
}

// Tokenize breaks text into a slice of stemmed, lowercased Tokens with
// stop-words removed.
func Tokenize(text string) []Token {
	words := Words(text)
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		term, ok := Normalize(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Normalize returns the index form of a single word. When stemming turns a
// searchable word into something unsearchable (empty or a stop-word) the
// lower-cased word is kept instead, so the stemmer never removes a word from
// the index. The boolean is false for words that are not indexed at all.
func Normalize(word string) (string, bool) {
	word = strings.ToLower(word)
	stemmed := Stem(word)
	if keep(stemmed) {
		return stemmed, true
	}
	if keep(word) {
		return word, true
	}
	return "", false
}

// Stem applies the Porter stemmer to an already lower-cased word.
func Stem(word string) string {
	return porterstemmer.StemString(word)
}

func keep(word string) bool {
	if word == "" {
		return false
	}
	return !IsStopWord(word)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
