// Package cli implements the docindex command line: building an index from a
// content tree, querying it the way the widget would, and inspecting or
// verifying an existing searchindex.js.
package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
)

type globalOptions struct {
	configPath string
	colorMode  string
	logLevel   string
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "docindex",
		Short: "Build and query Sphinx-compatible search indexes",
		Long: `docindex builds searchindex.js for a tree of notebooks and markdown
files, and answers queries against it with the same matching and scoring
the search widget uses.

Examples:
  docindex build --source content --out _build/html/searchindex.js
  docindex query "attention -bahdanau"
  docindex inspect --terms 20
  docindex verify _build/html/searchindex.js
  docindex loadtest --url http://localhost:8080 --index _build/html/searchindex.js`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyColorMode(opts.colorMode); err != nil {
				return err
			}
			logger.SetupTo(cmd.ErrOrStderr(), opts.logLevel, "text")
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (defaults apply when empty)")
	root.PersistentFlags().StringVar(&opts.colorMode, "color", "auto", "color output: auto, always, or never")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		newBuildCommand(opts),
		newQueryCommand(opts),
		newInspectCommand(opts),
		newVerifyCommand(opts),
		newLoadTestCommand(opts),
	)
	return root
}

func applyColorMode(mode string) error {
	switch mode {
	case "auto":
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color %q: want auto, always or never", mode)
	}
	return nil
}

func (o *globalOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

var (
	heading = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	failure = color.New(color.FgRed, color.Bold)
	faint   = color.New(color.Faint)
)

func field(w io.Writer, name string, value any) {
	fmt.Fprintf(w, "  %-12s %v\n", name+":", value)
}
