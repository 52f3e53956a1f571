package index

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// Top-level keys of the serialized object.
const (
	KeyDocNames   = "docnames"
	KeyFilenames  = "filenames"
	KeyTitles     = "titles"
	KeyTerms      = "terms"
	KeyTitleTerms = "titleterms"
	KeyAllTitles  = "alltitles"
	KeyEnvVersion = "envversion"
	KeyObjects    = "objects"
	KeyObjNames   = "objnames"
	KeyObjTypes   = "objtypes"
	KeyDocLengths = "doclengths"
)

// ToWire converts the index into the generic value tree written by jsdump.
func (s *SearchIndex) ToWire() map[string]any {
	out := make(map[string]any, 10+len(s.Extra))
	for k, v := range s.Extra {
		out[k] = v
	}
	out[KeyDocNames] = nonNilStrings(s.DocNames)
	out[KeyFilenames] = nonNilStrings(s.Filenames)
	out[KeyTitles] = nonNilStrings(s.Titles)
	out[KeyTerms] = tableToWire(s.Terms)
	out[KeyTitleTerms] = tableToWire(s.TitleTerms)
	out[KeyEnvVersion] = nonNilMap(s.EnvVersion)
	out[KeyObjects] = nonNilMap(s.Objects)
	out[KeyObjNames] = nonNilMap(s.ObjNames)
	out[KeyObjTypes] = nonNilMap(s.ObjTypes)
	if len(s.AllTitles) > 0 {
		all := make(map[string]any, len(s.AllTitles))
		for title, refs := range s.AllTitles {
			list := make([]any, len(refs))
			for i, ref := range refs {
				var anchor any
				if ref.Anchor != "" {
					anchor = ref.Anchor
				}
				list[i] = []any{ref.Doc, anchor}
			}
			all[title] = list
		}
		out[KeyAllTitles] = all
	}
	if s.DocLengths != nil {
		out[KeyDocLengths] = s.DocLengths
	}
	return out
}

// FromWire builds an index from a decoded value tree. It checks shapes only;
// call Validate for the cross-reference invariants.
func FromWire(v any) (*SearchIndex, error) {
	root, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level is %T, want object", apperrors.ErrInvalidIndex, v)
	}
	s := Empty()
	var err error
	for key, val := range root {
		switch key {
		case KeyDocNames:
			s.DocNames, err = stringList(key, val)
		case KeyFilenames:
			s.Filenames, err = stringList(key, val)
		case KeyTitles:
			s.Titles, err = stringList(key, val)
		case KeyTerms:
			s.Terms, err = tableFromWire(key, val)
		case KeyTitleTerms:
			s.TitleTerms, err = tableFromWire(key, val)
		case KeyAllTitles:
			s.AllTitles, err = allTitlesFromWire(val)
		case KeyDocLengths:
			s.DocLengths, err = intList(key, val)
		case KeyEnvVersion:
			s.EnvVersion, err = object(key, val)
		case KeyObjects:
			s.Objects, err = object(key, val)
		case KeyObjNames:
			s.ObjNames, err = object(key, val)
		case KeyObjTypes:
			s.ObjTypes, err = object(key, val)
		default:
			s.Extra[key] = val
		}
		if err != nil {
			return nil, err
		}
	}
	if _, ok := root[KeyDocNames]; !ok {
		return nil, fmt.Errorf("%w: missing %s", apperrors.ErrInvalidIndex, KeyDocNames)
	}
	// Older generators omit filenames; fall back to the document names.
	if _, ok := root[KeyFilenames]; !ok {
		s.Filenames = append([]string(nil), s.DocNames...)
	}
	return s, nil
}

func tableToWire(table map[string]Postings) map[string]any {
	out := make(map[string]any, len(table))
	for term, postings := range table {
		out[term] = postings.wireValue()
	}
	return out
}

func tableFromWire(key string, v any) (map[string]Postings, error) {
	obj, err := object(key, v)
	if err != nil {
		return nil, err
	}
	table := make(map[string]Postings, len(obj))
	for term, val := range obj {
		postings, err := postingsFromWire(val)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q: %v", apperrors.ErrInvalidIndex, key, term, err)
		}
		table[term] = postings
	}
	return table, nil
}

func allTitlesFromWire(v any) (map[string][]TitleRef, error) {
	obj, err := object(KeyAllTitles, v)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]TitleRef, len(obj))
	for title, val := range obj {
		list, ok := val.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: alltitles %q is %T, want list", apperrors.ErrInvalidIndex, title, val)
		}
		refs := make([]TitleRef, 0, len(list))
		for _, item := range list {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("%w: alltitles %q entry must be [doc, anchor]", apperrors.ErrInvalidIndex, title)
			}
			doc, ok := pair[0].(int)
			if !ok {
				return nil, fmt.Errorf("%w: alltitles %q document is %T", apperrors.ErrInvalidIndex, title, pair[0])
			}
			ref := TitleRef{Doc: doc}
			switch anchor := pair[1].(type) {
			case nil:
			case string:
				ref.Anchor = anchor
			default:
				return nil, fmt.Errorf("%w: alltitles %q anchor is %T", apperrors.ErrInvalidIndex, title, pair[1])
			}
			refs = append(refs, ref)
		}
		out[title] = refs
	}
	return out, nil
}

func object(key string, v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T, want object", apperrors.ErrInvalidIndex, key, v)
	}
	return obj, nil
}

func stringList(key string, v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T, want list", apperrors.ErrInvalidIndex, key, v)
	}
	out := make([]string, len(list))
	for i, item := range list {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is %T, want string", apperrors.ErrInvalidIndex, key, i, item)
		}
		out[i] = str
	}
	return out, nil
}

func intList(key string, v any) ([]int, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T, want list", apperrors.ErrInvalidIndex, key, v)
	}
	out := make([]int, len(list))
	for i, item := range list {
		n, ok := item.(int)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is %T, want integer", apperrors.ErrInvalidIndex, key, i, item)
		}
		out[i] = n
	}
	return out, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
