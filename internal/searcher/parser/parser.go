// Package parser turns a raw query string into the normalised terms the
// executor looks up. The query language is the widget's: plain words, with a
// leading '-' excluding a word.
package parser

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/tokenizer"
)

type QueryPlan struct {
	// Terms are normalised (stemmed) words every result must match.
	Terms []string
	// ExcludeTerms are normalised words no result may contain.
	ExcludeTerms []string
	// Highlight holds the lower-cased words as typed, for snippet marking.
	Highlight []string
	RawQuery  string
}

// Empty reports whether the plan has nothing to look up.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0 && strings.TrimSpace(p.RawQuery) == ""
}

func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Highlight:    make([]string, 0),
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	seen := make(map[string]struct{})
	for _, field := range strings.Fields(query) {
		exclude := false
		if strings.HasPrefix(field, "-") {
			exclude = true
			field = strings.TrimLeft(field, "-")
		}
		for _, word := range tokenizer.Words(field) {
			if tokenizer.IsStopWord(word) || isNumber(word) {
				continue
			}
			term, ok := tokenizer.Normalize(word)
			if !ok {
				continue
			}
			key := term
			if exclude {
				key = "-" + term
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if exclude {
				plan.ExcludeTerms = append(plan.ExcludeTerms, term)
			} else {
				plan.Terms = append(plan.Terms, term)
				plan.Highlight = append(plan.Highlight, word)
			}
		}
	}
	return plan
}

func isNumber(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return word != ""
}
