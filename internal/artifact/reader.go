package artifact

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/jsdump"
)

// Open reads and decodes the artifact at path without validating it.
func Open(path string) (*index.SearchIndex, *Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading index file: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("stat index file: %w", err)
	}
	v, err := jsdump.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	idx, err := index.FromWire(v)
	if err != nil {
		return nil, nil, fmt.Errorf("loading %s: %w", path, err)
	}
	stats := idx.Stats()
	return idx, &Manifest{
		Path:     path,
		Size:     int64(len(data)),
		Checksum: crc32.ChecksumIEEE(data),
		Docs:     stats.Documents,
		Terms:    stats.Terms,
		BuiltAt:  info.ModTime().UTC(),
	}, nil
}

// Load opens the artifact and rejects it unless every invariant holds.
func Load(path string) (*index.SearchIndex, *Manifest, error) {
	idx, manifest, err := Open(path)
	if err != nil {
		return nil, nil, err
	}
	if err := idx.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return idx, manifest, nil
}
