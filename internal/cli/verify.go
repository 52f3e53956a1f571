package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/artifact"
)

var errInvalid = errors.New("index failed verification")

func newVerifyCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [searchindex.js]",
		Short: "Check that every reference in an index resolves",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := indexPathArg(opts, args)
			if err != nil {
				return err
			}
			idx, _, err := artifact.Open(path)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if err := idx.Validate(); err != nil {
				problems := []error{err}
				if joined, ok := err.(interface{ Unwrap() []error }); ok {
					problems = joined.Unwrap()
				}
				for _, p := range problems {
					failure.Fprint(w, "FAIL ")
					fmt.Fprintln(w, p)
				}
				return fmt.Errorf("%w: %d problems in %s", errInvalid, len(problems), path)
			}
			success.Fprint(w, "OK ")
			fmt.Fprintf(w, "%s (%d documents)\n", path, idx.NumDocs())
			return nil
		},
	}
}
