package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/proto"
)

var modeFlags = []string{"search", "prefixsearch", "autocomplete"}

var limitFlags = []string{"topK", "expandLimit", "page", "limit"}

func runQuery(cmd *cobra.Command, root *rootOptions, q *queryOptions) error {
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}
	setupLogging(cmd.ErrOrStderr(), cfg, "warn", root.verbose)

	mode, err := selectMode(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	backend, closeBackend, err := openBackend(ctx, cfg, q.remote)
	if err != nil {
		return err
	}
	defer closeBackend()

	var resp any
	switch mode {
	case "search":
		resp, err = backend.Search(ctx, proto.SearchRequest{
			Query: q.search,
			Mode:  proto.ModeExact,
			Page:  q.page,
			TopK:  q.topK,
		})
	case "prefixsearch":
		resp, err = backend.Search(ctx, proto.SearchRequest{
			Query:       q.prefixSearch,
			Mode:        proto.ModePrefix,
			Page:        q.page,
			TopK:        q.topK,
			ExpandLimit: q.expandLimit,
		})
	case "autocomplete":
		resp, err = backend.Autocomplete(ctx, proto.AutocompleteRequest{
			Prefix: q.autocomplete,
			Limit:  q.limit,
		})
	default:
		resp, err = backend.Status(ctx)
	}
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), resp)
}

// selectMode returns the single mode flag given, or "" for a status query.
// Explicit limits below 1 are rejected here; unset ones stay zero so the
// service applies its defaults.
func selectMode(cmd *cobra.Command) (string, error) {
	flags := cmd.Flags()
	for _, name := range limitFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return "", apperrors.InvalidArgumentf("--%s: %v", name, err)
		}
		if v < 1 {
			return "", apperrors.InvalidArgumentf("--%s must be at least 1, got %d", name, v)
		}
	}

	mode := ""
	for _, name := range modeFlags {
		if !flags.Changed(name) {
			continue
		}
		if mode != "" {
			return "", apperrors.InvalidArgumentf("--%s and --%s are mutually exclusive", mode, name)
		}
		mode = name
	}
	return mode, nil
}

// openBackend dials a serve-mode instance when remote is set, otherwise
// builds the index in process.
func openBackend(ctx context.Context, cfg *config.Config, remote string) (searcher.Backend, func(), error) {
	if remote != "" {
		r, err := searcher.DialRemote(ctx, remote)
		if err != nil {
			return nil, nil, apperrors.IndexUnavailablef("remote index at %s: %v", remote, err)
		}
		return r, func() { r.Close() }, nil
	}

	engine, closeSource, err := newEngine(ctx, cfg, nil)
	if err != nil {
		closeSource()
		return nil, nil, apperrors.IndexUnavailablef("%v", err)
	}
	ix, err := engine.Build(ctx)
	closeSource()
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("index built", "build_id", ix.BuildID(), "documents", ix.Stats().Documents)
	return searcher.New(index.NewHandle(ix), searcher.OptionsFromConfig(cfg), nil, nil, nil), func() {}, nil
}
