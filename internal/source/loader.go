package source

import (
	"context"
	"fmt"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
)

// Loader walks a content directory and parses every matching file.
type Loader struct {
	root        string
	include     []string
	exclude     []string
	concurrency int
	logger      *slog.Logger
}

// NewLoader creates a Loader from builder configuration.
func NewLoader(cfg config.BuilderConfig) *Loader {
	concurrency := cfg.LoadConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Loader{
		root:        cfg.SourceDir,
		include:     cfg.Include,
		exclude:     cfg.Exclude,
		concurrency: concurrency,
		logger:      slog.Default().With("component", "source-loader"),
	}
}

// Files returns the relative, slash-separated paths of every file that will
// be loaded, sorted.
func (l *Loader) Files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != l.root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if l.selected(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking source directory %s: %w", l.root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Load parses every selected file concurrently and returns the documents
// sorted by name, so builds over the same tree are reproducible.
func (l *Loader) Load(ctx context.Context) ([]Document, error) {
	files, err := l.Files()
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := l.loadFile(rel)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	l.logger.Info("content loaded", "root", l.root, "documents", len(docs))
	return docs, nil
}

// Fingerprint summarises names, sizes and modification times of the
// selected files. It changes whenever a rebuild would produce different
// input.
func (l *Loader) Fingerprint() (uint64, error) {
	files, err := l.Files()
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	for _, rel := range files {
		info, err := os.Stat(filepath.Join(l.root, filepath.FromSlash(rel)))
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", rel, err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", rel, info.Size(), info.ModTime().UnixNano())
	}
	return h.Sum64(), nil
}

func (l *Loader) selected(rel string) bool {
	base := path.Base(rel)
	for _, pattern := range l.exclude {
		if match(pattern, rel) || match(pattern, base) {
			return false
		}
	}
	if len(l.include) == 0 {
		return parserFor(rel) != nil
	}
	for _, pattern := range l.include {
		if match(pattern, rel) || match(pattern, base) {
			return parserFor(rel) != nil
		}
	}
	return false
}

func match(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

func (l *Loader) loadFile(rel string) (Document, error) {
	data, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(rel)))
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", rel, err)
	}
	parse := parserFor(rel)
	sections, body, err := parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("parsing %s: %w", rel, err)
	}
	name := strings.TrimSuffix(rel, path.Ext(rel))
	doc := Document{
		Name:     name,
		Filename: rel,
		Sections: sections,
		Body:     body,
	}
	doc.Title = firstTitle(sections, name)
	l.logger.Debug("document parsed", "name", name, "sections", len(sections), "bytes", len(data))
	return doc, nil
}

type parseFunc func(data []byte) ([]Section, string, error)

func parserFor(rel string) parseFunc {
	switch strings.ToLower(path.Ext(rel)) {
	case ".ipynb":
		return parseNotebook
	case ".md", ".markdown":
		return func(data []byte) ([]Section, string, error) {
			sections, body := parseMarkdown(string(data))
			return sections, body, nil
		}
	case ".txt":
		return func(data []byte) ([]Section, string, error) {
			return nil, string(data), nil
		}
	default:
		return nil
	}
}

type notebook struct {
	Cells []notebookCell `json:"cells"`
}

type notebookCell struct {
	CellType string `json:"cell_type"`
	Source   any    `json:"source"`
}

// parseNotebook reads an nbformat v4 notebook. Markdown cells contribute
// headings and prose; code cells contribute their source.
func parseNotebook(data []byte) ([]Section, string, error) {
	var nb notebook
	if err := sonic.Unmarshal(data, &nb); err != nil {
		return nil, "", fmt.Errorf("decoding notebook: %w", err)
	}
	var sections []Section
	var body strings.Builder
	for i, c := range nb.Cells {
		text, err := cellText(c.Source)
		if err != nil {
			return nil, "", fmt.Errorf("cell %d: %w", i, err)
		}
		switch c.CellType {
		case "markdown":
			s, b := parseMarkdown(text)
			sections = append(sections, s...)
			body.WriteString(b)
		case "code":
			body.WriteString(text)
			body.WriteByte('\n')
		}
	}
	return sections, body.String(), nil
}

func cellText(src any) (string, error) {
	switch v := src.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []any:
		var sb strings.Builder
		for _, line := range v {
			s, ok := line.(string)
			if !ok {
				return "", fmt.Errorf("source line is %T, want string", line)
			}
			sb.WriteString(s)
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("source is %T, want string or list", src)
	}
}
