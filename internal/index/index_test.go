package index

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

func sampleIndex() *SearchIndex {
	s := Empty()
	s.DocNames = []string{"C001344_NARM", "C065971_SASRec", "L270195_Attention_mechanism"}
	s.Filenames = []string{"C001344_NARM.ipynb", "C065971_SASRec.ipynb", "L270195_Attention_mechanism.ipynb"}
	s.Titles = []string{"NARM", "SASRec", "Attention mechanism"}
	s.Terms = map[string]Postings{
		"attent":    {{Doc: 0}, {Doc: 1}, {Doc: 2}},
		"recommend": {{Doc: 0}, {Doc: 1}},
		"bahdanau":  {{Doc: 2}},
	}
	s.TitleTerms = map[string]Postings{
		"narm":   {{Doc: 0}},
		"sasrec": {{Doc: 1}},
		"attent": {{Doc: 2}},
		"mechan": {{Doc: 2}},
	}
	s.AllTitles = map[string][]TitleRef{
		"Attention mechanism": {{Doc: 2}},
		"Bahdanau attention":  {{Doc: 2, Anchor: "bahdanau-attention"}},
	}
	return s
}

func TestValidateAcceptsConsistentIndex(t *testing.T) {
	assert.NoError(t, sampleIndex().Validate())
	assert.NoError(t, Empty().Validate())
}

func TestValidateReportsDanglingReferences(t *testing.T) {
	s := sampleIndex()
	s.Terms["ghost"] = Postings{{Doc: 1}, {Doc: 7}}
	s.AllTitles["Lost"] = []TitleRef{{Doc: -1}}

	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDanglingRef))
	assert.ErrorContains(t, err, `terms "ghost"`)
	assert.ErrorContains(t, err, `alltitles "Lost"`)
}

func TestValidateStructuralErrors(t *testing.T) {
	cases := map[string]func(s *SearchIndex){
		"titles length":   func(s *SearchIndex) { s.Titles = s.Titles[:2] },
		"filenames":       func(s *SearchIndex) { s.Filenames = nil },
		"duplicate name":  func(s *SearchIndex) { s.DocNames[1] = s.DocNames[0] },
		"unsorted":        func(s *SearchIndex) { s.Terms["attent"] = Postings{{Doc: 2}, {Doc: 0}} },
		"duplicate doc":   func(s *SearchIndex) { s.TitleTerms["narm"] = Postings{{Doc: 0}, {Doc: 0}} },
		"empty postings":  func(s *SearchIndex) { s.Terms["void"] = Postings{} },
		"mixed weighting": func(s *SearchIndex) { s.Terms["attent"] = Postings{{Doc: 0, Weight: 2}, {Doc: 1}} },
		"doclengths":      func(s *SearchIndex) { s.DocLengths = []int{4} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := sampleIndex()
			mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidIndex))
		})
	}
}

func TestLookupAndDocuments(t *testing.T) {
	s := sampleIndex()
	assert.Equal(t, []int{0, 1, 2}, s.Lookup("attent").Docs())
	assert.Nil(t, s.Lookup("missing"))
	assert.True(t, s.LookupTitle("attent").Contains(2))
	assert.False(t, s.LookupTitle("attent").Contains(0))

	doc, ok := s.Document(1)
	require.True(t, ok)
	assert.Equal(t, Document{Index: 1, Name: "C065971_SASRec", Filename: "C065971_SASRec.ipynb", Title: "SASRec"}, doc)
	_, ok = s.Document(3)
	assert.False(t, ok)

	i, ok := s.DocIndex("L270195_Attention_mechanism")
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = s.DocIndex("nope")
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	assert.Equal(t, Stats{Documents: 3, Terms: 3, TitleTerms: 4, Titles: 2}, sampleIndex().Stats())
}

func TestPostingsNormalize(t *testing.T) {
	p := Postings{{Doc: 4, Weight: 1}, {Doc: 1, Weight: 2}, {Doc: 4, Weight: 3}}
	assert.Equal(t, Postings{{Doc: 1, Weight: 2}, {Doc: 4, Weight: 4}}, p.Normalize())
	assert.Equal(t, 4, p.Normalize().Weight(4))
	assert.Equal(t, 0, p.Normalize().Weight(2))
}

func TestWireRoundTrip(t *testing.T) {
	s := sampleIndex()
	s.Extra["indexentries"] = map[string]any{}
	back, err := FromWire(s.ToWire())
	require.NoError(t, err)

	assert.Equal(t, s.DocNames, back.DocNames)
	assert.Equal(t, s.Filenames, back.Filenames)
	assert.Equal(t, s.Titles, back.Titles)
	assert.Equal(t, s.Terms, back.Terms)
	assert.Equal(t, s.TitleTerms, back.TitleTerms)
	assert.Equal(t, s.AllTitles, back.AllTitles)
	assert.Equal(t, map[string]any{"indexentries": map[string]any{}}, back.Extra)
}

func TestWireCompactPostings(t *testing.T) {
	w := sampleIndex().ToWire()
	terms := w[KeyTerms].(map[string]any)
	assert.Equal(t, 2, terms["bahdanau"])
	assert.Equal(t, []int{0, 1}, terms["recommend"])

	weighted := Postings{{Doc: 0, Weight: 3}, {Doc: 2, Weight: 1}}
	assert.Equal(t, []any{[]int{0, 3}, []int{2, 1}}, weighted.wireValue())

	all := w[KeyAllTitles].(map[string]any)
	assert.Equal(t, []any{[]any{2, nil}}, all["Attention mechanism"])
}

func TestFromWireErrors(t *testing.T) {
	cases := map[string]any{
		"not object":     []any{},
		"missing names":  map[string]any{"terms": map[string]any{}},
		"bad names":      map[string]any{"docnames": []any{1}},
		"bad postings":   map[string]any{"docnames": []any{"a"}, "terms": map[string]any{"x": "0"}},
		"bad pair":       map[string]any{"docnames": []any{"a"}, "terms": map[string]any{"x": []any{[]any{0}}}},
		"zero weight":    map[string]any{"docnames": []any{"a"}, "terms": map[string]any{"x": []any{[]any{0, 0}}}},
		"bad alltitles":  map[string]any{"docnames": []any{"a"}, "alltitles": map[string]any{"T": []any{[]any{"0", nil}}}},
		"bad envversion": map[string]any{"docnames": []any{"a"}, "envversion": 3},
	}
	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromWire(v)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidIndex))
		})
	}
}

func TestFromWireDefaultsFilenames(t *testing.T) {
	s, err := FromWire(map[string]any{
		"docnames": []any{"a", "b"},
		"titles":   []any{"A", "B"},
		"terms":    map[string]any{"x": []any{0, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.Filenames)
	assert.NoError(t, s.Validate())
}
