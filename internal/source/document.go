// Package source loads content documents (notebooks, markdown and plain
// text) from a directory tree into the form the index builder consumes.
package source

import (
	"strings"
	"unicode"
)

// Section is a heading inside a document.
type Section struct {
	Title  string
	Anchor string
	Level  int
}

// Document is one content file ready for indexing.
type Document struct {
	// Name is the slash-separated path relative to the source root without
	// its extension, e.g. "C001344_NARM" or "concepts/attention".
	Name     string
	Filename string
	Title    string
	Sections []Section
	Body     string
}

// TitleText returns all heading text, used for title-term indexing.
func (d Document) TitleText() string {
	parts := make([]string, 0, len(d.Sections)+1)
	parts = append(parts, d.Title)
	for _, s := range d.Sections {
		if s.Title == d.Title && s.Level <= 1 {
			continue
		}
		parts = append(parts, s.Title)
	}
	return strings.Join(parts, "\n")
}

// Anchor derives a section identifier from heading text: lower-cased, runs of
// anything other than letters and digits collapsed to a single hyphen, and
// hyphens trimmed from both ends.
func Anchor(title string) string {
	var sb strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pendingHyphen = false
			sb.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return sb.String()
}

// parseMarkdown extracts ATX headings (# ...) from markdown text and returns
// them with the text stripped of heading markers. Fenced code blocks are kept
// in the body but never produce headings.
func parseMarkdown(text string) ([]Section, string) {
	var sections []Section
	var body strings.Builder
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			body.WriteString(line)
			body.WriteByte('\n')
			continue
		}
		if !inFence {
			if level, title, ok := atxHeading(trimmed); ok {
				sections = append(sections, Section{Title: title, Anchor: Anchor(title), Level: level})
				continue
			}
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	return sections, body.String()
}

func atxHeading(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	title := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(line[level:]), "#"))
	title = stripInlineMarkup(title)
	if title == "" {
		return 0, "", false
	}
	return level, title, true
}

// stripInlineMarkup removes emphasis, code and link syntax from heading text.
func stripInlineMarkup(s string) string {
	s = strings.NewReplacer("**", "", "__", "", "`", "", "*", "").Replace(s)
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			end := strings.Index(s[i:], "](")
			if end < 0 {
				sb.WriteByte(s[i])
				continue
			}
			closing := strings.IndexByte(s[i+end:], ')')
			if closing < 0 {
				sb.WriteByte(s[i])
				continue
			}
			sb.WriteString(s[i+1 : i+end])
			i += end + closing
		default:
			sb.WriteByte(s[i])
		}
	}
	return strings.TrimSpace(sb.String())
}

// firstTitle picks the first top-most heading, falling back to name.
func firstTitle(sections []Section, name string) string {
	best := -1
	for i, s := range sections {
		if best < 0 || s.Level < sections[best].Level {
			best = i
		}
		if s.Level == 1 {
			break
		}
	}
	if best >= 0 {
		return sections[best].Title
	}
	base := name
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	return strings.ReplaceAll(base, "_", " ")
}
