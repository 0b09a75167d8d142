package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/loader"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/resilience"
)

// setupLogging sends logs to w. verbose wins over level.
func setupLogging(w io.Writer, cfg *config.Config, level string, verbose bool) {
	if verbose {
		level = "debug"
	}
	logger.Setup(level, cfg.Logging.Format, w)
}

func newTokenizer(cfg *config.Config) *tokenizer.Tokenizer {
	return tokenizer.New(tokenizer.Options{
		MinLength:   cfg.Tokenizer.MinLength,
		MaxLength:   cfg.Tokenizer.MaxLength,
		StopWords:   cfg.Tokenizer.StopWords,
		DropNumeric: cfg.Tokenizer.DropNumeric,
	})
}

// newSource opens the configured document source. The returned close func
// is never nil.
func newSource(ctx context.Context, cfg *config.Config) (loader.Source, func(), error) {
	switch cfg.Source.Kind {
	case config.SourcePostgres:
		var client *postgres.Client
		err := resilience.Retry(ctx, "connect postgres", resilience.RetryConfig{}, func(ctx context.Context) error {
			var err error
			client, err = postgres.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			return nil, func() {}, fmt.Errorf("connecting to document database: %w", err)
		}
		slog.Info("postgres document source", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		return loader.NewPostgres(client, cfg.Source.Query), func() { client.Close() }, nil
	default:
		return loader.NewFS(loader.FSOptions{
			Root:        cfg.Indexer.DataDir,
			Extensions:  cfg.Indexer.Extensions,
			MaxFileSize: cfg.Indexer.MaxFileSize,
			Workers:     cfg.Indexer.Workers,
		}), func() {}, nil
	}
}

// newEngine wires the source, tokenizer and snapshot settings into an
// Engine. m may be nil.
func newEngine(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*indexer.Engine, func(), error) {
	source, closeSource, err := newSource(ctx, cfg)
	if err != nil {
		return nil, closeSource, err
	}
	return indexer.NewEngine(source, newTokenizer(cfg), cfg.Indexer.SnapshotPath, m), closeSource, nil
}
