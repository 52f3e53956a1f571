package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
)

const narmNotebook = `{
 "cells": [
  {"cell_type": "markdown", "metadata": {}, "source": ["# NARM\n", "\n", "Neural Attentive Session-based Recommendation.\n"]},
  {"cell_type": "code", "metadata": {}, "execution_count": 1, "outputs": [], "source": "import torch\nx_1 = torch.zeros(1)"},
  {"cell_type": "markdown", "metadata": {}, "source": "## Model **architecture**\n\nAn encoder-decoder with [attention](https://arxiv.org)."}
 ],
 "metadata": {},
 "nbformat": 4,
 "nbformat_minor": 5
}`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func newTestLoader(root string) *Loader {
	return NewLoader(config.BuilderConfig{
		SourceDir:       root,
		Include:         []string{"*.ipynb", "*.md", "*.txt"},
		Exclude:         []string{"drafts/*"},
		LoadConcurrency: 4,
	})
}

func TestLoadParsesAllFormats(t *testing.T) {
	root := writeTree(t, map[string]string{
		"C001344_NARM.ipynb":                               narmNotebook,
		"concepts/L270195_Attention_mechanism.md":          "# Attention mechanism\n\nBahdanau attention.\n\n## Bahdanau attention\n\n```python\n# not a heading\n```\n",
		"notes.txt":                                        "plain notes about GRU4Rec",
		"drafts/unfinished.md":                             "# Draft",
		".ipynb_checkpoints/C001344_NARM-checkpoint.ipynb": narmNotebook,
		"figure.png":                                       "binary",
	})

	docs, err := newTestLoader(root).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	narm := docs[0]
	assert.Equal(t, "C001344_NARM", narm.Name)
	assert.Equal(t, "C001344_NARM.ipynb", narm.Filename)
	assert.Equal(t, "NARM", narm.Title)
	require.Len(t, narm.Sections, 2)
	assert.Equal(t, Section{Title: "Model architecture", Anchor: "model-architecture", Level: 2}, narm.Sections[1])
	assert.Contains(t, narm.Body, "x_1 = torch.zeros(1)")
	assert.Contains(t, narm.Body, "Session-based")

	attention := docs[1]
	assert.Equal(t, "concepts/L270195_Attention_mechanism", attention.Name)
	assert.Equal(t, "Attention mechanism", attention.Title)
	require.Len(t, attention.Sections, 2)
	assert.Contains(t, attention.Body, "# not a heading")

	notes := docs[2]
	assert.Equal(t, "notes", notes.Name)
	assert.Equal(t, "notes", notes.Title)
	assert.Empty(t, notes.Sections)
}

func TestLoadRejectsBrokenNotebook(t *testing.T) {
	root := writeTree(t, map[string]string{"broken.ipynb": `{"cells": [`})
	_, err := newTestLoader(root).Load(context.Background())
	assert.ErrorContains(t, err, "broken.ipynb")
}

func TestLoadMissingRoot(t *testing.T) {
	_, err := newTestLoader(filepath.Join(t.TempDir(), "absent")).Load(context.Background())
	assert.Error(t, err)
}

func TestFingerprintTracksChanges(t *testing.T) {
	root := writeTree(t, map[string]string{"a.md": "# A"})
	l := newTestLoader(root)

	first, err := l.Fingerprint()
	require.NoError(t, err)
	again, err := l.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.md"), []byte("# B"), 0o644))
	changed, err := l.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}

func TestAnchor(t *testing.T) {
	assert.Equal(t, "self-attention-in-sasrec", Anchor("Self-Attention in SASRec"))
	assert.Equal(t, "gelu-activation", Anchor("  GeLU  activation!! "))
	assert.Equal(t, "", Anchor("---"))
}

func TestTitleText(t *testing.T) {
	doc := Document{
		Title: "Transformers",
		Sections: []Section{
			{Title: "Transformers", Level: 1},
			{Title: "Multi-head attention", Level: 2},
		},
	}
	assert.Equal(t, "Transformers\nMulti-head attention", doc.TitleText())
}

func TestFirstTitleFallsBackToName(t *testing.T) {
	assert.Equal(t, "L201302 GeLU activation", firstTitle(nil, "concepts/L201302_GeLU_activation"))
	assert.Equal(t, "Top", firstTitle([]Section{{Title: "Sub", Level: 2}, {Title: "Top", Level: 1}}, "x"))
}
