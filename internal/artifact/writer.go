// Package artifact persists a SearchIndex as the searchindex.js file loaded by
// the search widget. Files are replaced atomically so readers only ever see a
// complete generation.
package artifact

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/jsdump"
)

// Manifest describes a written artifact.
type Manifest struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Checksum uint32    `json:"checksum"`
	Docs     int       `json:"docs"`
	Terms    int       `json:"terms"`
	BuiltAt  time.Time `json:"built_at"`
}

// Writer serialises indexes into a fixed output path.
type Writer struct {
	path string
}

// NewWriter creates a Writer for the given output file.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the output file.
func (w *Writer) Path() string {
	return w.path
}

// Write replaces the artifact with idx. It writes to a .tmp file in the same
// directory, syncs it, and renames it over the previous version.
func (w *Writer) Write(idx *index.SearchIndex) (*Manifest, error) {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	tmpPath := w.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("creating temp index file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	hash := crc32.NewIEEE()
	counter := &countingWriter{w: io.MultiWriter(f, hash)}
	if err := jsdump.Encode(counter, idx.ToWire()); err != nil {
		return nil, fmt.Errorf("encoding index: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return nil, fmt.Errorf("renaming index file: %w", err)
	}
	stats := idx.Stats()
	return &Manifest{
		Path:     w.path,
		Size:     counter.n,
		Checksum: hash.Sum32(),
		Docs:     stats.Documents,
		Terms:    stats.Terms,
		BuiltAt:  time.Now().UTC(),
	}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
