// triagebench measures how well text classifiers rank the likely owner of a
// new issue, using a CouchDB-style dump of historically assigned issues.
//
// Usage:
//
//	triagebench [corpus.json[.gz|.zst]] [--config bench.yaml] [--trials 50] [--seed N]
//	triagebench history --db results.db [--run ID]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command { return buildRootCmd(&runFlags{}) }

func buildRootCmd(f *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triagebench [corpus]",
		Short: "Benchmark owner-ranking strategies on an issue corpus",
		Long: `triagebench loads a JSON dump of assigned issues, repeatedly holds out a
random tenth as a test set, and reports how highly each strategy ranks the
true owner (mean reciprocal rank, top-1 and top-5 accuracy).

The corpus defaults to large.json; .gz and .zst dumps are decompressed.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, args, f)
		},
	}
	f.register(cmd)
	cmd.AddCommand(newHistoryCmd())
	cmd.Version = version
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
