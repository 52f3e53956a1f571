// Package builder accumulates documents into an in-memory inverted index and
// freezes it into an immutable index.SearchIndex.
package builder

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/source"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// FormatVersion is recorded under envversion so consumers can tell which
// builder produced an index.
const FormatVersion = 1

type docEntry struct {
	name       string
	filename   string
	title      string
	sections   []source.Section
	titleTerms map[string]struct{}
	termFreq   map[string]int
	length     int
}

// Builder is safe for concurrent Add calls.
type Builder struct {
	mu       sync.Mutex
	docs     map[string]*docEntry
	weighted bool
	tokens   int64
}

// New creates an empty Builder. When weighted is true the frozen index
// records term frequencies and document lengths.
func New(weighted bool) *Builder {
	return &Builder{
		docs:     make(map[string]*docEntry),
		weighted: weighted,
	}
}

// Add tokenizes a document. Heading words go to the title table; body words
// go to the term table unless the same term already occurs in that
// document's headings.
func (b *Builder) Add(doc source.Document) error {
	if doc.Name == "" {
		return fmt.Errorf("%w: document with empty name (file %q)", apperrors.ErrInvalidInput, doc.Filename)
	}
	entry := &docEntry{
		name:       doc.Name,
		filename:   doc.Filename,
		title:      doc.Title,
		sections:   doc.Sections,
		titleTerms: make(map[string]struct{}),
		termFreq:   make(map[string]int),
	}
	if entry.filename == "" {
		entry.filename = doc.Name
	}
	titleTokens := tokenizer.Tokenize(doc.TitleText())
	for _, tok := range titleTokens {
		entry.titleTerms[tok.Term] = struct{}{}
	}
	bodyTokens := tokenizer.Tokenize(doc.Body)
	for _, tok := range bodyTokens {
		if _, inTitle := entry.titleTerms[tok.Term]; inTitle {
			continue
		}
		entry.termFreq[tok.Term]++
	}
	entry.length = len(titleTokens) + len(bodyTokens)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.docs[doc.Name]; exists {
		return fmt.Errorf("%w: duplicate document name %q", apperrors.ErrInvalidInput, doc.Name)
	}
	b.docs[doc.Name] = entry
	b.tokens += int64(entry.length)
	return nil
}

// DocCount returns the number of documents added so far.
func (b *Builder) DocCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.docs)
}

// TokenCount returns the number of indexed tokens added so far.
func (b *Builder) TokenCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Freeze produces the index. Documents are ordered by name, so the same set
// of documents always yields the same document indices.
func (b *Builder) Freeze() *index.SearchIndex {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.docs))
	for name := range b.docs {
		names = append(names, name)
	}
	sort.Strings(names)

	idx := index.Empty()
	idx.EnvVersion = map[string]any{"docindex": FormatVersion}
	idx.DocNames = names
	idx.Filenames = make([]string, len(names))
	idx.Titles = make([]string, len(names))
	if b.weighted {
		idx.DocLengths = make([]int, len(names))
	}
	for i, name := range names {
		entry := b.docs[name]
		idx.Filenames[i] = entry.filename
		idx.Titles[i] = entry.title
		if b.weighted {
			idx.DocLengths[i] = entry.length
		}
		for term := range entry.titleTerms {
			idx.TitleTerms[term] = append(idx.TitleTerms[term], index.Posting{Doc: i})
		}
		for term, freq := range entry.termFreq {
			p := index.Posting{Doc: i}
			if b.weighted {
				p.Weight = freq
			}
			idx.Terms[term] = append(idx.Terms[term], p)
		}
		addTitles(idx, i, entry)
	}
	// Documents were visited in index order, so postings are already sorted.
	return idx
}

func addTitles(idx *index.SearchIndex, doc int, entry *docEntry) {
	if entry.title != "" {
		idx.AllTitles[entry.title] = append(idx.AllTitles[entry.title], index.TitleRef{Doc: doc})
	}
	for _, s := range entry.sections {
		if s.Title == entry.title && s.Level <= 1 {
			continue
		}
		idx.AllTitles[s.Title] = append(idx.AllTitles[s.Title], index.TitleRef{Doc: doc, Anchor: s.Anchor})
	}
}

// Reset discards every added document.
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = make(map[string]*docEntry)
	b.tokens = 0
}
