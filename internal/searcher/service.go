// Package searcher is the typed query facade shared by the command line,
// the HTTP handlers and the RPC server. It reads the currently published
// index from an index.Handle on every call.
package searcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/paginator"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/snippet"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/tracing"
)

// Tracker receives one event per served query. *analytics.Collector
// satisfies it.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

type Options struct {
	MatchPolicy        string
	TitleBonus         float64
	DefaultTopK        int
	MaxPageSize        int
	DefaultExpandLimit int
	DefaultSuggest     int
	Snippet            snippet.Options
	DataDir            string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MatchPolicy:        cfg.Search.MatchPolicy,
		TitleBonus:         cfg.Search.TitleBonus,
		DefaultTopK:        cfg.Search.DefaultTopK,
		MaxPageSize:        cfg.Search.MaxPageSize,
		DefaultExpandLimit: cfg.Search.DefaultExpandLimit,
		DefaultSuggest:     cfg.Search.DefaultSuggest,
		Snippet: snippet.Options{
			Context:  cfg.Search.SnippetContext,
			Fallback: cfg.Search.SnippetFallback,
		},
		DataDir: cfg.Indexer.DataDir,
	}
}

type Service struct {
	handle   *index.Handle
	executor *executor.Executor
	cache    *cache.QueryCache
	tracker  Tracker
	metrics  *metrics.Metrics
	opts     Options
	logger   *slog.Logger
}

// New creates a Service. queryCache, tracker and m may be nil.
func New(handle *index.Handle, opts Options, queryCache *cache.QueryCache, tracker Tracker, m *metrics.Metrics) *Service {
	if opts.MaxPageSize <= 0 || opts.MaxPageSize > paginator.MaxPageSize {
		opts.MaxPageSize = paginator.MaxPageSize
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 10
	}
	if opts.DefaultExpandLimit <= 0 {
		opts.DefaultExpandLimit = 100
	}
	if opts.DefaultSuggest <= 0 {
		opts.DefaultSuggest = 10
	}
	return &Service{
		handle:   handle,
		executor: executor.New(opts.MatchPolicy, opts.TitleBonus),
		cache:    queryCache,
		tracker:  tracker,
		metrics:  m,
		opts:     opts,
		logger:   slog.Default().With("component", "search-service"),
	}
}

// Search runs an exact or prefix query and returns the requested page.
func (s *Service) Search(ctx context.Context, req proto.SearchRequest) (*proto.SearchResponse, error) {
	start := time.Now()
	if req.Mode == "" {
		req.Mode = proto.ModeExact
	}
	ctx, span := tracing.Start(ctx, "search", logger.RequestID(ctx))
	span.SetAttr("mode", req.Mode)
	resp, cacheHit, err := s.search(ctx, req)
	elapsed := time.Since(start)
	span.SetAttr("cache_hit", cacheHit)
	span.End()
	span.Log(ctx, s.logger)
	s.observe(ctx, req.Mode, req.Query, req.Page, resp, cacheHit, err, elapsed)
	if err != nil {
		return nil, err
	}
	resp.TimeMS = millis(elapsed)
	return resp, nil
}

func (s *Service) search(ctx context.Context, req proto.SearchRequest) (*proto.SearchResponse, bool, error) {
	if req.Mode != proto.ModeExact && req.Mode != proto.ModePrefix {
		return nil, false, apperrors.InvalidArgumentf("unknown search mode %q", req.Mode)
	}
	topK, err := s.limit("topK", req.TopK, s.opts.DefaultTopK)
	if err != nil {
		return nil, false, err
	}
	expandLimit := 0
	if req.Mode == proto.ModePrefix {
		if expandLimit, err = s.limit("expandLimit", req.ExpandLimit, s.opts.DefaultExpandLimit); err != nil {
			return nil, false, err
		}
	}
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 0 {
		return nil, false, apperrors.InvalidArgumentf("page must be >= 1, got %d", page)
	}

	ix, err := s.handle.Load()
	if err != nil {
		return nil, false, err
	}
	_, parseSpan := tracing.StartChild(ctx, "parse")
	plan, err := parser.Parse(ix.Tokenizer(), req.Mode, req.Query)
	parseSpan.End()
	if err != nil {
		return nil, false, err
	}

	compute := func() (*proto.SearchResponse, error) {
		return s.execute(ctx, ix, plan, page, topK, expandLimit)
	}
	if s.cache == nil {
		resp, err := compute()
		return resp, false, err
	}
	terms := plan.Terms
	if plan.Mode == proto.ModePrefix {
		terms = plan.Prefixes
	}
	key := cache.Key{
		BuildID:     ix.BuildID(),
		Mode:        plan.Mode,
		Terms:       terms,
		Phrase:      plan.Phrase,
		Page:        page,
		TopK:        topK,
		ExpandLimit: expandLimit,
	}
	resp, hit, err := s.cache.GetOrCompute(ctx, key, compute)
	if err != nil {
		return nil, false, err
	}
	// cached pages are shared, so the caller gets its own copy of the echo
	// fields
	out := *resp
	s.echo(&out, plan)
	return &out, hit, nil
}

func (s *Service) execute(ctx context.Context, ix *index.Index, plan *parser.QueryPlan, pageNum, topK, expandLimit int) (*proto.SearchResponse, error) {
	_, retrieve := tracing.StartChild(ctx, "retrieve")
	res, err := s.executor.Execute(ctx, ix, plan, expandLimit)
	retrieve.End()
	if err != nil {
		return nil, err
	}
	retrieve.SetAttr("hits", res.TotalHits)

	_, render := tracing.StartChild(ctx, "render")
	defer render.End()
	page, err := paginator.Paginate(res.TotalHits, pageNum, topK, s.opts.MaxPageSize)
	if err != nil {
		return nil, err
	}

	snippetTerms := plan.Terms
	if plan.Mode == proto.ModePrefix {
		snippetTerms = res.ExpandedTerms
	}
	scored := paginator.Slice(res.Results, page)
	results := make([]proto.SearchResult, 0, len(scored))
	for i, sd := range scored {
		doc, err := ix.Document(sd.DocID)
		if err != nil {
			return nil, err
		}
		results = append(results, proto.SearchResult{
			Rank:             page.Start + i + 1,
			Filename:         doc.Filename,
			Filepath:         doc.Path,
			Score:            sd.Score,
			Snippet:          snippet.Extract(doc.Body, snippetTerms, s.opts.Snippet),
			TotalOccurrences: sd.Occurrences,
			InTitle:          sd.InTitle,
			ExactPhraseMatch: plan.Mode == proto.ModeExact && executor.PhraseMatch(ix.Tokenizer(), doc, plan.Phrase),
		})
	}

	resp := &proto.SearchResponse{
		Mode:           plan.Mode,
		Results:        results,
		Count:          len(results),
		TotalResults:   page.TotalResults,
		TotalPages:     page.TotalPages,
		Page:           page.Number,
		ResultsPerPage: page.Size,
		ExpandedTerms:  res.ExpandedTerms,
	}
	if next, ok := page.Next(); ok {
		resp.NextPage = &next
	}
	if prev, ok := page.Prev(); ok {
		resp.PrevPage = &prev
	}
	s.echo(resp, plan)
	return resp, nil
}

// echo fills the request-specific fields that are not part of the cache key.
func (s *Service) echo(resp *proto.SearchResponse, plan *parser.QueryPlan) {
	resp.Query, resp.Prefix = "", ""
	if plan.Mode == proto.ModePrefix {
		resp.Prefix = plan.RawQuery
	} else {
		resp.Query = plan.RawQuery
	}
}

// Autocomplete completes the last word of req.Prefix. It never touches the
// inverted index.
func (s *Service) Autocomplete(ctx context.Context, req proto.AutocompleteRequest) (*proto.AutocompleteResponse, error) {
	start := time.Now()
	resp, err := s.autocomplete(req)
	elapsed := time.Since(start)

	var view *proto.SearchResponse
	if resp != nil {
		view = &proto.SearchResponse{Count: resp.Count, TotalResults: resp.Count, Page: 1}
	}
	s.observe(ctx, proto.ModeAutocomplete, req.Prefix, 0, view, false, err, elapsed)
	if err != nil {
		return nil, err
	}
	resp.TimeMS = millis(elapsed)
	return resp, nil
}

func (s *Service) autocomplete(req proto.AutocompleteRequest) (*proto.AutocompleteResponse, error) {
	limit, err := s.limit("limit", req.Limit, s.opts.DefaultSuggest)
	if err != nil {
		return nil, err
	}
	ix, err := s.handle.Load()
	if err != nil {
		return nil, err
	}
	plan, err := parser.Parse(ix.Tokenizer(), proto.ModeAutocomplete, req.Prefix)
	if err != nil {
		return nil, err
	}
	suggestions := []string{}
	if !plan.Empty() {
		suggestions = append(suggestions, ix.Trie().Autocomplete(plan.Prefixes[0], limit)...)
	}
	return &proto.AutocompleteResponse{
		Prefix:      req.Prefix,
		Suggestions: suggestions,
		Count:       len(suggestions),
	}, nil
}

// Status describes the published index.
func (s *Service) Status(ctx context.Context) (*proto.StatusResponse, error) {
	ix, err := s.handle.Load()
	if err != nil {
		return nil, err
	}
	stats := ix.Stats()
	return &proto.StatusResponse{
		Status:            "ready",
		Documents:         stats.Documents,
		UniqueTerms:       stats.UniqueTerms,
		DataDirectory:     s.opts.DataDir,
		TotalWordsIndexed: stats.TotalTokens,
		BuildID:           stats.BuildID,
		BuiltAt:           stats.BuiltAt.Format(time.RFC3339),
	}, nil
}

// InvalidateCache drops cached pages after a new index is published.
func (s *Service) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

// CacheStats reports hit and miss counts. ok is false when caching is off.
func (s *Service) CacheStats() (hits, misses int64, ok bool) {
	if s.cache == nil {
		return 0, 0, false
	}
	hits, misses = s.cache.Stats()
	return hits, misses, true
}

func (s *Service) limit(name string, v, def int) (int, error) {
	if v == 0 {
		v = def
	}
	if v < 1 || v > s.opts.MaxPageSize {
		return 0, apperrors.InvalidArgumentf("%s must be between 1 and %d, got %d", name, s.opts.MaxPageSize, v)
	}
	return v, nil
}

func (s *Service) observe(ctx context.Context, mode, query string, page int, resp *proto.SearchResponse, cacheHit bool, err error, elapsed time.Duration) {
	log := logger.FromContext(ctx).With("component", "search-service")
	event := analytics.SearchEvent{
		Type:      analytics.EventSearch,
		Mode:      mode,
		Query:     query,
		Page:      page,
		LatencyMs: millis(elapsed),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(ctx),
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		event.Type = analytics.EventError
		log.Debug("query failed", "mode", mode, "query", query, "error", err)
	case resp.TotalResults == 0:
		outcome = "zero_result"
		event.Type = analytics.EventZeroResult
	}
	if resp != nil {
		event.TotalResults = resp.TotalResults
		event.Returned = resp.Count
		if mode == proto.ModeAutocomplete {
			event.Type = analytics.EventAutocomplete
		}
	}
	if err == nil {
		log.Debug("query served",
			"mode", mode,
			"query", query,
			"total_results", event.TotalResults,
			"returned", event.Returned,
			"cache_hit", cacheHit,
			"latency_ms", event.LatencyMs,
		)
	}

	if s.metrics != nil {
		cacheStatus := "miss"
		if cacheHit {
			cacheStatus = "hit"
		} else if s.cache == nil || mode == proto.ModeAutocomplete {
			cacheStatus = "none"
		}
		s.metrics.SearchQueriesTotal.WithLabelValues(mode, outcome).Inc()
		s.metrics.SearchLatency.WithLabelValues(mode, cacheStatus).Observe(elapsed.Seconds())
		if err == nil {
			s.metrics.SearchResultsCount.WithLabelValues(mode).Observe(float64(event.TotalResults))
		}
	}
	if s.tracker != nil {
		s.tracker.Track(event)
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
