package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
)

func newInspectCommand(opts *globalOptions) *cobra.Command {
	var topTerms int
	cmd := &cobra.Command{
		Use:   "inspect [searchindex.js]",
		Short: "Summarise an index and list its most common terms",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := indexPathArg(opts, args)
			if err != nil {
				return err
			}
			idx, manifest, err := artifact.Open(path)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			stats := idx.Stats()
			heading.Fprintln(w, path)
			field(w, "documents", stats.Documents)
			field(w, "terms", stats.Terms)
			field(w, "titleterms", stats.TitleTerms)
			field(w, "titles", stats.Titles)
			field(w, "weighted", stats.Weighted)
			field(w, "bytes", manifest.Size)
			field(w, "checksum", fmt.Sprintf("%08x", manifest.Checksum))
			if topTerms > 0 {
				heading.Fprintln(w, "top terms")
				for _, tc := range mostCommon(idx.Terms, topTerms) {
					fmt.Fprintf(w, "  %-20s %d\n", tc.term, tc.docs)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topTerms, "terms", "t", 10, "number of most common terms to list")
	return cmd
}

type termCount struct {
	term string
	docs int
}

// mostCommon ranks terms by the number of documents listing them.
func mostCommon(table map[string]index.Postings, n int) []termCount {
	counts := make([]termCount, 0, len(table))
	for term, postings := range table {
		counts = append(counts, termCount{term: term, docs: len(postings)})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].docs != counts[j].docs {
			return counts[i].docs > counts[j].docs
		}
		return counts[i].term < counts[j].term
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

func indexPathArg(opts *globalOptions, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := opts.load()
	if err != nil {
		return "", err
	}
	return cfg.Search.IndexPath, nil
}
