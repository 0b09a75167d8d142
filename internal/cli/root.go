// Package cli is the minisearch command tree. The root command answers one
// query per process and writes a single JSON object to stdout; `serve` runs
// the same engine as a long-lived HTTP and RPC service.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath   string
	dataDir      string
	snapshotPath string
	matchPolicy  string
	verbose      bool
}

// queryOptions holds the process-per-query flags.
type queryOptions struct {
	search       string
	prefixSearch string
	autocomplete string
	topK         int
	expandLimit  int
	page         int
	limit        int
	remote       string
}

// Execute runs the command tree with args and returns the process exit code.
// Errors are printed to stderr as "error: <message>".
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", apperrors.Message(err))
	}
	return apperrors.ExitCode(err)
}

func newRootCommand() *cobra.Command {
	root := &rootOptions{}
	q := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "minisearch",
		Short: "Trie autocomplete and ranked full-text search over a document directory",
		Long: `minisearch indexes a directory of text, markdown and HTML documents and
answers one query per invocation, printing a single JSON object to stdout.

Exactly one of --search, --prefixsearch or --autocomplete selects the mode.
With none of them the index status is printed.`,
		Example: `  minisearch --data-dir ./Data --search "rust ownership" --topK 10 --page 1
  minisearch --data-dir ./Data --prefixsearch "gor" --topK 10 --expandLimit 50
  minisearch --data-dir ./Data --autocomplete "ca" --limit 5`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return apperrors.InvalidArgumentf("unexpected argument %q; quote multi-word queries", args[0])
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd, root, q)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.InvalidArgumentf("%v", err)
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&root.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&root.dataDir, "data-dir", "", "root directory of documents to index")
	pf.StringVar(&root.snapshotPath, "snapshot", "", "path of the index snapshot file (empty disables snapshots)")
	pf.StringVar(&root.matchPolicy, "match", "", "exact-mode matching policy: any or all")
	pf.BoolVarP(&root.verbose, "verbose", "v", false, "debug logging on stderr")

	f := cmd.Flags()
	f.StringVar(&q.search, "search", "", "exact search query")
	f.StringVar(&q.prefixSearch, "prefixsearch", "", "prefix search query; every word is expanded through the trie")
	f.StringVar(&q.autocomplete, "autocomplete", "", "complete the last word of the input")
	f.IntVar(&q.topK, "topK", 0, "results per page (default search.defaultTopK)")
	f.IntVar(&q.expandLimit, "expandLimit", 0, "terms each prefix expands to (default search.defaultExpandLimit)")
	f.IntVar(&q.page, "page", 0, "1-based result page")
	f.IntVar(&q.limit, "limit", 0, "number of suggestions (default search.defaultSuggest)")
	f.StringVar(&q.remote, "remote", "", "query a running `minisearch serve` at this RPC address instead of indexing locally")

	cmd.AddCommand(newServeCommand(root), newKeygenCommand(), newLoadtestCommand())
	return cmd
}

// loadConfig applies the precedence defaults < file < MS_* env < flags.
func loadConfig(cmd *cobra.Command, root *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(root.configPath)
	if err != nil {
		return nil, apperrors.InvalidArgumentf("%v", err)
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.Indexer.DataDir = root.dataDir
	}
	if flags.Changed("snapshot") {
		cfg.Indexer.SnapshotPath = root.snapshotPath
	}
	if flags.Changed("match") {
		cfg.Search.MatchPolicy = root.matchPolicy
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.InvalidArgumentf("invalid configuration: %v", err)
	}
	return cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}
