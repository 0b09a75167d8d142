// Package indexer turns a document source into a published index. Engine
// owns one build pass: load, tokenise, freeze and optionally persist.
// Watcher keeps a long-lived Handle fresh while the service runs.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/loader"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
)

// Build statuses reported to metrics and logs.
const (
	StatusBuilt    = "built"
	StatusSnapshot = "snapshot"
	StatusFailed   = "failed"
)

type Engine struct {
	source   loader.Source
	tk       *tokenizer.Tokenizer
	snapshot *segment.Writer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngine creates an Engine. snapshotPath and m may be empty or nil.
func NewEngine(source loader.Source, tk *tokenizer.Tokenizer, snapshotPath string, m *metrics.Metrics) *Engine {
	e := &Engine{
		source:  source,
		tk:      tk,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
	if snapshotPath != "" {
		e.snapshot = segment.NewWriter(snapshotPath)
	}
	return e
}

func (e *Engine) Source() loader.Source { return e.source }

// Build produces a complete index. No reader sees a partially built index:
// the result is only returned once it is frozen.
func (e *Engine) Build(ctx context.Context) (*index.Index, error) {
	start := time.Now()
	ix, status, err := e.build(ctx)
	elapsed := time.Since(start)
	if err != nil {
		e.observe(StatusFailed, nil, elapsed)
		return nil, err
	}
	e.observe(status, ix, elapsed)
	stats := ix.Stats()
	e.logger.Info("index ready",
		"status", status,
		"build_id", stats.BuildID,
		"documents", stats.Documents,
		"terms", stats.UniqueTerms,
		"tokens", stats.TotalTokens,
		"duration", elapsed,
	)
	return ix, nil
}

// Rebuild builds a new index and publishes it on h. On failure the
// previously published index stays in place.
func (e *Engine) Rebuild(ctx context.Context, h *index.Handle) (*index.Index, error) {
	ix, err := e.Build(ctx)
	if err != nil {
		e.logger.Error("rebuild failed, keeping previous index", "error", err)
		return nil, err
	}
	if prev := h.Swap(ix); prev != nil {
		e.logger.Info("index swapped", "previous_build_id", prev.BuildID(), "build_id", ix.BuildID())
	}
	return ix, nil
}

func (e *Engine) build(ctx context.Context) (*index.Index, string, error) {
	fingerprint := e.fingerprint(ctx)
	if ix := e.restore(fingerprint); ix != nil {
		return ix, StatusSnapshot, nil
	}

	b := index.NewBuilder(e.tk, e.source.Name())
	err := e.source.Load(ctx, func(doc index.Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.Add(doc)
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("loading documents: %w", err)
	}
	if b.DocCount() == 0 {
		return nil, "", apperrors.IndexUnavailablef("no documents could be indexed from %s", e.source.Name())
	}
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Add(float64(b.DocCount()))
	}
	ix := b.Build()

	if e.snapshot != nil && fingerprint != "" {
		if err := e.snapshot.Write(ix, fingerprint); err != nil {
			e.logger.Warn("writing snapshot failed", "path", e.snapshot.Path(), "error", err)
		} else {
			e.logger.Debug("snapshot written", "path", e.snapshot.Path())
		}
	}
	return ix, StatusBuilt, nil
}

// fingerprint describes the source contents plus tokenizer settings. An empty
// result disables snapshot reuse.
func (e *Engine) fingerprint(ctx context.Context) string {
	if e.snapshot == nil {
		return ""
	}
	fp, ok := e.source.(loader.Fingerprinter)
	if !ok {
		return ""
	}
	sum, err := fp.Fingerprint(ctx)
	if err != nil {
		e.logger.Debug("fingerprint unavailable", "error", err)
		return ""
	}
	return fmt.Sprintf("%s|%+v", sum, e.tk.Options())
}

func (e *Engine) restore(fingerprint string) *index.Index {
	if fingerprint == "" {
		return nil
	}
	snap, err := segment.Read(e.snapshot.Path())
	if err != nil {
		if !errors.Is(err, segment.ErrCorrupt) {
			e.logger.Debug("no usable snapshot", "path", e.snapshot.Path(), "error", err)
		} else {
			e.logger.Warn("ignoring corrupt snapshot", "path", e.snapshot.Path(), "error", err)
		}
		return nil
	}
	if snap.Fingerprint != fingerprint {
		e.logger.Info("snapshot is stale, rebuilding", "path", e.snapshot.Path())
		return nil
	}
	ix, err := snap.Index()
	if err != nil {
		e.logger.Warn("ignoring invalid snapshot", "path", e.snapshot.Path(), "error", err)
		return nil
	}
	return ix
}

func (e *Engine) observe(status string, ix *index.Index, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	e.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
	if ix != nil {
		stats := ix.Stats()
		e.metrics.IndexDocuments.Set(float64(stats.Documents))
		e.metrics.IndexTerms.Set(float64(stats.UniqueTerms))
	}
}
