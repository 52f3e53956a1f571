// Package executor runs parsed queries against the currently loaded index.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

const (
	RankingWidget = "widget"
	RankingBM25   = "bm25"
)

// minPartialLen is the shortest term that may match by substring, and the
// shortest term a document is required to match.
const minPartialLen = 3

type SearchResult struct {
	Query     string             `json:"query"`
	Ranking   string             `json:"ranking"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	TermStats map[string]int     `json:"term_stats"`
}

// IndexSource yields the index generation a query should run against.
type IndexSource interface {
	Current() *index.SearchIndex
}

type Executor struct {
	source IndexSource
	cfg    config.SearchConfig
	scorer ranker.Scorer
	logger *slog.Logger
}

func New(source IndexSource, cfg config.SearchConfig) *Executor {
	return &Executor{
		source: source,
		cfg:    cfg,
		scorer: ranker.DefaultScorer,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Limit clamps a requested page size to the configured bounds.
func (e *Executor) Limit(requested int) int {
	if requested <= 0 {
		return e.cfg.DefaultLimit
	}
	if e.cfg.MaxResults > 0 && requested > e.cfg.MaxResults {
		return e.cfg.MaxResults
	}
	return requested
}

func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	idx := e.source.Current()
	if idx == nil {
		return nil, apperrors.ErrIndexNotLoaded
	}
	limit = e.Limit(limit)
	ranking := RankingWidget
	if e.cfg.Ranking == RankingBM25 && idx.Weighted() {
		ranking = RankingBM25
	}
	result := &SearchResult{
		Query:     plan.RawQuery,
		Ranking:   ranking,
		Results:   []ranker.ScoredDoc{},
		TermStats: make(map[string]int),
	}
	if plan.Empty() {
		return result, nil
	}

	termHits, err := e.termSearch(ctx, idx, plan, ranking, result.TermStats)
	if err != nil {
		return nil, err
	}
	titleHits := e.titleSearch(idx, plan)
	result.Results, result.TotalHits = merger.Merge([][]ranker.ScoredDoc{termHits, titleHits}, limit)

	e.logger.Info("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"ranking", ranking,
		"term_hits", len(termHits),
		"title_hits", len(titleHits),
		"results", len(result.Results),
	)
	return result, nil
}

// termSearch looks every term up in terms and titleterms. A document must
// match all terms of at least minPartialLen runes (or all terms when none
// is that long) and none of the excluded terms.
func (e *Executor) termSearch(
	ctx context.Context,
	idx *index.SearchIndex,
	plan *parser.QueryPlan,
	ranking string,
	termStats map[string]int,
) ([]ranker.ScoredDoc, error) {
	if len(plan.Terms) == 0 {
		return nil, nil
	}
	// doc -> term -> best score for that term
	matched := make(map[int]map[string]float64)
	for _, term := range plan.Terms {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("searching term %q: %w", term, err)
		}
		found := 0
		record := func(postings index.Postings, score float64) {
			for _, p := range postings {
				scores, ok := matched[p.Doc]
				if !ok {
					scores = make(map[string]float64)
					matched[p.Doc] = scores
				}
				if score > scores[term] {
					scores[term] = score
				}
				found++
			}
		}
		exact, exactTitle := idx.Lookup(term), idx.LookupTitle(term)
		record(exact, e.scorer.Term)
		record(exactTitle, e.scorer.Title)
		if utf8.RuneCountInString(term) >= minPartialLen {
			if _, ok := idx.Terms[term]; !ok {
				for candidate, postings := range idx.Terms {
					if strings.Contains(candidate, term) {
						record(postings, e.scorer.PartialTerm)
					}
				}
			}
			if _, ok := idx.TitleTerms[term]; !ok {
				for candidate, postings := range idx.TitleTerms {
					if strings.Contains(candidate, term) {
						record(postings, e.scorer.PartialTitle)
					}
				}
			}
		}
		termStats[term] = found
	}

	var required []string
	for _, term := range plan.Terms {
		if utf8.RuneCountInString(term) >= minPartialLen {
			required = append(required, term)
		}
	}
	if len(required) == 0 {
		required = plan.Terms
	}
	candidates := make([]int, 0, len(matched))
	for doc, scores := range matched {
		if !matchesAll(scores, required) {
			continue
		}
		if excluded(idx, plan.ExcludeTerms, doc) {
			continue
		}
		candidates = append(candidates, doc)
	}

	var bm25 map[int]float64
	if ranking == RankingBM25 {
		bm25 = ranker.BM25(idx, plan.Terms, candidates, e.scorer)
	}
	hits := make([]ranker.ScoredDoc, 0, len(candidates))
	for _, doc := range candidates {
		score := 0.0
		if bm25 != nil {
			score = bm25[doc]
		} else {
			for _, s := range matched[doc] {
				if s > score {
					score = s
				}
			}
		}
		hits = append(hits, hit(idx, doc, "", "", score, ranker.KindText))
	}
	return hits, nil
}

func matchesAll(scores map[string]float64, terms []string) bool {
	for _, term := range terms {
		if _, ok := scores[term]; !ok {
			return false
		}
	}
	return true
}

func excluded(idx *index.SearchIndex, terms []string, doc int) bool {
	for _, term := range terms {
		if idx.Lookup(term).Contains(doc) || idx.LookupTitle(term).Contains(doc) {
			return true
		}
	}
	return false
}

// titleSearch matches the raw query against every document and section
// title. A hit on a document's own title scores one point more than the
// same match on a section.
func (e *Executor) titleSearch(idx *index.SearchIndex, plan *parser.QueryPlan) []ranker.ScoredDoc {
	query := strings.TrimSpace(plan.RawQuery)
	if query == "" || strings.HasPrefix(query, "-") {
		return nil
	}
	var hits []ranker.ScoredDoc
	for title, refs := range idx.AllTitles {
		score, ok := e.scorer.TitleScore(query, title)
		if !ok {
			continue
		}
		for _, ref := range refs {
			d, ok := idx.Document(ref.Doc)
			if !ok {
				continue
			}
			s := score
			if d.Title == title {
				s++
			}
			hits = append(hits, hit(idx, ref.Doc, title, ref.Anchor, s, ranker.KindTitle))
		}
	}
	return hits
}

// hit builds a result. A section title is shown as "Document > Section".
func hit(idx *index.SearchIndex, doc int, title, anchor string, score float64, kind ranker.Kind) ranker.ScoredDoc {
	d, _ := idx.Document(doc)
	display := d.Title
	if title != "" && title != d.Title {
		display = d.Title + " > " + title
	}
	return ranker.ScoredDoc{
		Doc:      doc,
		DocName:  d.Name,
		Filename: d.Filename,
		Title:    display,
		Anchor:   anchor,
		Score:    score,
		Kind:     kind,
	}
}
