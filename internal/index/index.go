// Package index defines the generated search index: document names, the
// term to document-index inverted maps, and title metadata. A SearchIndex is
// immutable once built; a new generation replaces it wholesale.
package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// TitleRef points at a heading inside a document. Anchor is empty for the
// document's own title.
type TitleRef struct {
	Doc    int
	Anchor string
}

// Document is the per-index view of a single entry in DocNames.
type Document struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
	Title    string `json:"title"`
}

// Stats summarises an index for logs and status endpoints.
type Stats struct {
	Documents  int  `json:"documents"`
	Terms      int  `json:"terms"`
	TitleTerms int  `json:"title_terms"`
	Titles     int  `json:"all_titles"`
	Weighted   bool `json:"weighted"`
}

// SearchIndex is the artifact consumed by the search widget.
type SearchIndex struct {
	DocNames   []string
	Filenames  []string
	Titles     []string
	Terms      map[string]Postings
	TitleTerms map[string]Postings
	AllTitles  map[string][]TitleRef

	// DocLengths holds the indexed token count per document. It is only
	// present in weighted indexes and is ignored by the widget.
	DocLengths []int

	// Generator bookkeeping carried through verbatim.
	EnvVersion map[string]any
	Objects    map[string]any
	ObjNames   map[string]any
	ObjTypes   map[string]any

	// Extra keeps top-level keys this package does not model, such as
	// indexentries, so that a decode/encode cycle loses nothing.
	Extra map[string]any

	nameOnce  sync.Once
	nameIndex map[string]int
}

// Empty returns an index with no documents and non-nil tables.
func Empty() *SearchIndex {
	return &SearchIndex{
		DocNames:   []string{},
		Filenames:  []string{},
		Titles:     []string{},
		Terms:      map[string]Postings{},
		TitleTerms: map[string]Postings{},
		AllTitles:  map[string][]TitleRef{},
		EnvVersion: map[string]any{},
		Objects:    map[string]any{},
		ObjNames:   map[string]any{},
		ObjTypes:   map[string]any{},
		Extra:      map[string]any{},
	}
}

// NumDocs returns the number of documents.
func (s *SearchIndex) NumDocs() int {
	return len(s.DocNames)
}

// Lookup returns the postings of an exact, already-normalised term.
func (s *SearchIndex) Lookup(term string) Postings {
	return s.Terms[term]
}

// LookupTitle returns the title postings of an exact, already-normalised term.
func (s *SearchIndex) LookupTitle(term string) Postings {
	return s.TitleTerms[term]
}

// Document returns the document at index i.
func (s *SearchIndex) Document(i int) (Document, bool) {
	if i < 0 || i >= len(s.DocNames) {
		return Document{}, false
	}
	doc := Document{Index: i, Name: s.DocNames[i]}
	if i < len(s.Filenames) {
		doc.Filename = s.Filenames[i]
	}
	if i < len(s.Titles) {
		doc.Title = s.Titles[i]
	}
	return doc, true
}

// DocIndex resolves a document name to its index.
func (s *SearchIndex) DocIndex(name string) (int, bool) {
	s.nameOnce.Do(func() {
		s.nameIndex = make(map[string]int, len(s.DocNames))
		for i, n := range s.DocNames {
			if _, dup := s.nameIndex[n]; !dup {
				s.nameIndex[n] = i
			}
		}
	})
	i, ok := s.nameIndex[name]
	return i, ok
}

// DocLength returns the indexed token count of doc, or zero when unknown.
func (s *SearchIndex) DocLength(doc int) int {
	if doc < 0 || doc >= len(s.DocLengths) {
		return 0
	}
	return s.DocLengths[doc]
}

// AvgDocLength returns the mean indexed token count across documents.
func (s *SearchIndex) AvgDocLength() float64 {
	if len(s.DocLengths) == 0 {
		return 0
	}
	total := 0
	for _, n := range s.DocLengths {
		total += n
	}
	return float64(total) / float64(len(s.DocLengths))
}

// Weighted reports whether term postings carry weights.
func (s *SearchIndex) Weighted() bool {
	for _, p := range s.Terms {
		if p.Weighted() {
			return true
		}
	}
	return false
}

// SortedTerms returns every term in byte order.
func (s *SearchIndex) SortedTerms() []string {
	return sortedKeys(s.Terms)
}

// SortedTitleTerms returns every title term in byte order.
func (s *SearchIndex) SortedTitleTerms() []string {
	return sortedKeys(s.TitleTerms)
}

// Stats returns table sizes.
func (s *SearchIndex) Stats() Stats {
	return Stats{
		Documents:  len(s.DocNames),
		Terms:      len(s.Terms),
		TitleTerms: len(s.TitleTerms),
		Titles:     len(s.AllTitles),
		Weighted:   s.Weighted(),
	}
}

// Validate checks the structural invariants: parallel tables have matching
// lengths, names are unique, and every document index referenced from
// terms, titleterms or alltitles exists. All violations are reported.
func (s *SearchIndex) Validate() error {
	var errs []error
	n := len(s.DocNames)
	if len(s.Filenames) != n {
		errs = append(errs, fmt.Errorf("%w: filenames has %d entries, docnames has %d", apperrors.ErrInvalidIndex, len(s.Filenames), n))
	}
	if len(s.Titles) != n {
		errs = append(errs, fmt.Errorf("%w: titles has %d entries, docnames has %d", apperrors.ErrInvalidIndex, len(s.Titles), n))
	}
	if s.DocLengths != nil && len(s.DocLengths) != n {
		errs = append(errs, fmt.Errorf("%w: doclengths has %d entries, docnames has %d", apperrors.ErrInvalidIndex, len(s.DocLengths), n))
	}
	seen := make(map[string]int, n)
	for i, name := range s.DocNames {
		if name == "" {
			errs = append(errs, fmt.Errorf("%w: document %d has an empty name", apperrors.ErrInvalidIndex, i))
		}
		if prev, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("%w: document name %q repeated at %d and %d", apperrors.ErrInvalidIndex, name, prev, i))
		}
		seen[name] = i
	}
	errs = append(errs, checkTable("terms", s.Terms, n)...)
	errs = append(errs, checkTable("titleterms", s.TitleTerms, n)...)
	for _, title := range sortedKeys(s.AllTitles) {
		for _, ref := range s.AllTitles[title] {
			if ref.Doc < 0 || ref.Doc >= n {
				errs = append(errs, fmt.Errorf("%w: alltitles %q references document %d of %d", apperrors.ErrDanglingRef, title, ref.Doc, n))
			}
		}
	}
	return errors.Join(errs...)
}

func checkTable(name string, table map[string]Postings, numDocs int) []error {
	var errs []error
	for _, term := range sortedKeys(table) {
		postings := table[term]
		if len(postings) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s %q has no documents", apperrors.ErrInvalidIndex, name, term))
			continue
		}
		if err := postings.check(numDocs); err != nil {
			sentinel := apperrors.ErrInvalidIndex
			for _, p := range postings {
				if p.Doc < 0 || p.Doc >= numDocs {
					sentinel = apperrors.ErrDanglingRef
					break
				}
			}
			errs = append(errs, fmt.Errorf("%w: %s %q: %v", sentinel, name, term, err))
		}
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
