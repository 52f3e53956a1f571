package cli

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/ranker"
)

func newQueryCommand(opts *globalOptions) *cobra.Command {
	var (
		indexPath string
		limit     int
		ranking   string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "query <words...>",
		Short: "Search an index the way the widget does",
		Long: `Search an index the way the widget does. Prefix a word with "-" to
exclude documents containing it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if indexPath != "" {
				cfg.Search.IndexPath = indexPath
			}
			if ranking != "" {
				cfg.Search.Ranking = ranking
			}
			engine := indexer.NewEngine(cfg.Builder, cfg.Search.IndexPath, indexer.Deps{})
			if _, err := engine.Reload(cmd.Context()); err != nil {
				return err
			}
			exec := executor.New(engine, cfg.Search)
			plan := parser.Parse(strings.Join(args, " "))
			result, err := exec.Execute(cmd.Context(), plan, exec.Limit(limit))
			if err != nil {
				return err
			}
			if asJSON {
				return sonic.ConfigDefault.NewEncoder(cmd.OutOrStdout()).Encode(result)
			}
			printResult(cmd, result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&indexPath, "index", "i", "", "searchindex.js to query (overrides search.indexPath)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results")
	cmd.Flags().StringVar(&ranking, "ranking", "", "ranking mode: widget or bm25")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the result as JSON")
	return cmd
}

func printResult(cmd *cobra.Command, result *executor.SearchResult) {
	w := cmd.OutOrStdout()
	if len(result.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	heading.Fprintf(w, "%d of %d results for %q\n", len(result.Results), result.TotalHits, result.Query)
	for i, r := range result.Results {
		target := r.Filename
		if r.Anchor != "" {
			target += "#" + r.Anchor
		}
		marker := ""
		if r.Kind == ranker.KindTitle {
			marker = " [title]"
		}
		fmt.Fprintf(w, "%3d. %s%s\n", i+1, r.Title, marker)
		faint.Fprintf(w, "     %s  score=%g\n", target, r.Score)
	}
}
