package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
)

func newBuildCommand(opts *globalOptions) *cobra.Command {
	var (
		sourceDir string
		out       string
		weighted  bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build searchindex.js from a content directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if sourceDir != "" {
				cfg.Builder.SourceDir = sourceDir
			}
			if out != "" {
				cfg.Builder.OutputDir, cfg.Builder.OutputFile = "", out
			}
			if cmd.Flags().Changed("weighted") {
				cfg.Builder.Weighted = weighted
			}

			start := time.Now()
			gen, err := indexer.NewEngine(cfg.Builder, "", indexer.Deps{}).Build(cmd.Context())
			if err != nil {
				failure.Fprintln(cmd.ErrOrStderr(), "build failed")
				return err
			}
			w := cmd.OutOrStdout()
			stats := gen.Index.Stats()
			success.Fprintf(w, "built %s\n", gen.Manifest.Path)
			field(w, "documents", stats.Documents)
			field(w, "terms", stats.Terms)
			field(w, "titleterms", stats.TitleTerms)
			field(w, "titles", stats.Titles)
			field(w, "bytes", gen.Manifest.Size)
			field(w, "checksum", fmt.Sprintf("%08x", gen.Manifest.Checksum))
			field(w, "took", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&sourceDir, "source", "s", "", "content directory (overrides builder.sourceDir)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (overrides builder.outputDir and outputFile)")
	cmd.Flags().BoolVar(&weighted, "weighted", false, "record term frequencies and document lengths")
	return cmd
}
