package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/proto"
)

type fixture struct {
	name, title, body string
}

func newService(t *testing.T, docs ...fixture) *Service {
	t.Helper()
	return New(index.NewHandle(buildIndex(docs...)), OptionsFromConfig(config.Default()), nil, nil, nil)
}

func buildIndex(docs ...fixture) *index.Index {
	b := index.NewBuilder(tokenizer.New(tokenizer.DefaultOptions()), "test")
	for _, d := range docs {
		b.Add(index.Document{
			Filename: d.name,
			Path:     "/data/" + d.name,
			Title:    d.title,
			Body:     d.body,
			Size:     512,
		})
	}
	return b.Build()
}

func filenames(resp *proto.SearchResponse) []string {
	out := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = r.Filename
	}
	return out
}

func TestSearchTitleScenario(t *testing.T) {
	svc := newService(t,
		fixture{"a.txt", "Rust", "rust rust rust rust"},
		fixture{"b.txt", "Notes", "rust rust rust rust rust"},
		fixture{"c.txt", "Go", "goroutines and channels"},
	)
	resp, err := svc.Search(context.Background(), proto.SearchRequest{Query: "rust"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt"}, filenames(resp))
	assert.Equal(t, "rust", resp.Query)
	assert.Empty(t, resp.Prefix)
	assert.Equal(t, proto.ModeExact, resp.Mode)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 2, resp.TotalResults)
	assert.Equal(t, 1, resp.TotalPages)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 10, resp.ResultsPerPage)
	assert.Nil(t, resp.NextPage)
	assert.Nil(t, resp.PrevPage)

	first := resp.Results[0]
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, "/data/a.txt", first.Filepath)
	assert.True(t, first.InTitle)
	assert.Equal(t, 5, first.TotalOccurrences)
	assert.Contains(t, first.Snippet, "rust")
	assert.False(t, resp.Results[1].InTitle)
	assert.Equal(t, 2, resp.Results[1].Rank)
	assert.GreaterOrEqual(t, first.Score, resp.Results[1].Score)
}

func TestSearchPageOutOfRange(t *testing.T) {
	svc := newService(t,
		fixture{"1", "", "alpha"},
		fixture{"2", "", "alpha"},
		fixture{"3", "", "alpha"},
	)
	resp, err := svc.Search(context.Background(), proto.SearchRequest{Query: "alpha", TopK: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.TotalPages)
	require.NotNil(t, resp.PrevPage)
	assert.Equal(t, 1, *resp.PrevPage)
	assert.Equal(t, 3, resp.Results[0].Rank)

	_, err = svc.Search(context.Background(), proto.SearchRequest{Query: "alpha", TopK: 2, Page: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	assert.Equal(t, apperrors.ExitInvalidArgument, apperrors.ExitCode(err))
}

func TestSearchPagesConcatenate(t *testing.T) {
	var docs []fixture
	for i := 0; i < 23; i++ {
		docs = append(docs, fixture{fmt.Sprintf("doc%02d", i), "", strings.Repeat("alpha ", i%5+1)})
	}
	svc := newService(t, docs...)
	ctx := context.Background()

	full, err := svc.Search(ctx, proto.SearchRequest{Query: "alpha", TopK: 1000})
	require.NoError(t, err)
	require.Equal(t, 23, full.TotalResults)

	var joined []string
	first, err := svc.Search(ctx, proto.SearchRequest{Query: "alpha", TopK: 5})
	require.NoError(t, err)
	require.Equal(t, 5, first.TotalPages)
	for page := 1; page <= first.TotalPages; page++ {
		resp, err := svc.Search(ctx, proto.SearchRequest{Query: "alpha", TopK: 5, Page: page})
		require.NoError(t, err)
		joined = append(joined, filenames(resp)...)
	}
	assert.Equal(t, filenames(full), joined)
}

func TestSearchDeterministic(t *testing.T) {
	svc := newService(t,
		fixture{"1", "rust", "go rust zig"},
		fixture{"2", "", "rust rust go"},
		fixture{"3", "go", "zig"},
	)
	req := proto.SearchRequest{Query: "rust go", Mode: proto.ModePrefix}
	first, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := svc.Search(context.Background(), req)
		require.NoError(t, err)
		again.TimeMS = first.TimeMS
		assert.Equal(t, first, again)
	}
}

func TestPrefixSearch(t *testing.T) {
	svc := newService(t,
		fixture{"1", "", "rustacean crab"},
		fixture{"2", "", "rusty nail"},
		fixture{"3", "", "golang"},
	)
	resp, err := svc.Search(context.Background(), proto.SearchRequest{Query: "rus", Mode: proto.ModePrefix, ExpandLimit: 5})
	require.NoError(t, err)
	assert.Equal(t, "rus", resp.Prefix)
	assert.Empty(t, resp.Query)
	assert.ElementsMatch(t, []string{"1", "2"}, filenames(resp))
	assert.ElementsMatch(t, []string{"rustacean", "rusty"}, resp.ExpandedTerms)
	for _, r := range resp.Results {
		assert.False(t, r.ExactPhraseMatch)
	}
}

func TestExactPhraseFlag(t *testing.T) {
	svc := newService(t,
		fixture{"1", "", "the borrow checker explained"},
		fixture{"2", "", "checker of borrow rules"},
	)
	resp, err := svc.Search(context.Background(), proto.SearchRequest{Query: "borrow checker"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	flags := map[string]bool{}
	for _, r := range resp.Results {
		flags[r.Filename] = r.ExactPhraseMatch
	}
	assert.True(t, flags["1"])
	assert.False(t, flags["2"])
}

func TestSearchValidation(t *testing.T) {
	svc := newService(t, fixture{"1", "", "alpha"})
	tests := []struct {
		name string
		req  proto.SearchRequest
	}{
		{"blank query", proto.SearchRequest{Query: "   "}},
		{"unknown mode", proto.SearchRequest{Query: "alpha", Mode: "fuzzy"}},
		{"topK too large", proto.SearchRequest{Query: "alpha", TopK: 1001}},
		{"negative topK", proto.SearchRequest{Query: "alpha", TopK: -1}},
		{"negative page", proto.SearchRequest{Query: "alpha", Page: -2}},
		{"expandLimit too large", proto.SearchRequest{Query: "al", Mode: proto.ModePrefix, ExpandLimit: 5000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Search(context.Background(), tt.req)
			assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
		})
	}
}

func TestSearchNormalisesToNothing(t *testing.T) {
	svc := newService(t, fixture{"1", "", "alpha"})
	resp, err := svc.Search(context.Background(), proto.SearchRequest{Query: "?!"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.NotNil(t, resp.Results)
	assert.Equal(t, 0, resp.TotalResults)
	assert.Equal(t, 1, resp.TotalPages)
}

func TestIndexUnavailable(t *testing.T) {
	svc := New(index.NewHandle(nil), Options{}, nil, nil, nil)
	_, err := svc.Search(context.Background(), proto.SearchRequest{Query: "alpha"})
	assert.ErrorIs(t, err, apperrors.ErrIndexUnavailable)
	_, err = svc.Autocomplete(context.Background(), proto.AutocompleteRequest{Prefix: "al"})
	assert.ErrorIs(t, err, apperrors.ErrIndexUnavailable)
	_, err = svc.Status(context.Background())
	assert.Equal(t, apperrors.ExitIndexUnavailable, apperrors.ExitCode(err))
}

func TestAutocomplete(t *testing.T) {
	svc := newService(t,
		fixture{"1", "", strings.Repeat("cat ", 10)},
		fixture{"2", "", strings.Repeat("car ", 3)},
		fixture{"3", "", "cab dog"},
	)
	ctx := context.Background()

	resp, err := svc.Autocomplete(ctx, proto.AutocompleteRequest{Prefix: "ca", Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "car", "cab"}, resp.Suggestions)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, "ca", resp.Prefix)

	resp, err = svc.Autocomplete(ctx, proto.AutocompleteRequest{Prefix: "my ca", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, resp.Suggestions)

	resp, err = svc.Autocomplete(ctx, proto.AutocompleteRequest{Prefix: "zzz"})
	require.NoError(t, err)
	assert.Empty(t, resp.Suggestions)
	assert.NotNil(t, resp.Suggestions)

	_, err = svc.Autocomplete(ctx, proto.AutocompleteRequest{Prefix: ""})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	_, err = svc.Autocomplete(ctx, proto.AutocompleteRequest{Prefix: "ca", Limit: 1001})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestStatus(t *testing.T) {
	ix := buildIndex(fixture{"1", "Hello", "hello world"}, fixture{"2", "", "world peace"})
	opts := OptionsFromConfig(config.Default())
	opts.DataDir = "/srv/docs"
	svc := New(index.NewHandle(ix), opts, nil, nil, nil)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ready", st.Status)
	assert.Equal(t, 2, st.Documents)
	assert.Equal(t, 3, st.UniqueTerms)
	assert.Equal(t, int64(5), st.TotalWordsIndexed)
	assert.Equal(t, "/srv/docs", st.DataDirectory)
	assert.Equal(t, ix.BuildID(), st.BuildID)
}

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

var errMiss = errors.New("miss")

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", errMiss
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memStore) FlushByPattern(context.Context, string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = map[string]string{}
	return n, nil
}

func (m *memStore) IsMiss(err error) bool { return errors.Is(err, errMiss) }

type recorder struct {
	mu     sync.Mutex
	events []analytics.SearchEvent
}

func (r *recorder) Track(e analytics.SearchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestCachedSearchAndAnalytics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	qc := cache.New(&memStore{data: map[string]string{}}, time.Minute, m)
	rec := &recorder{}
	svc := New(index.NewHandle(buildIndex(
		fixture{"1", "", "rust is fast"},
		fixture{"2", "", "go is simple"},
	)), OptionsFromConfig(config.Default()), qc, rec, m)
	ctx := context.Background()

	first, err := svc.Search(ctx, proto.SearchRequest{Query: "rust"})
	require.NoError(t, err)
	second, err := svc.Search(ctx, proto.SearchRequest{Query: "RUST!"})
	require.NoError(t, err)
	assert.Equal(t, "RUST!", second.Query, "echo fields are per request")
	assert.Equal(t, filenames(first), filenames(second))

	_, err = svc.Search(ctx, proto.SearchRequest{Query: "zig"})
	require.NoError(t, err)
	_, err = svc.Search(ctx, proto.SearchRequest{Query: ""})
	require.Error(t, err)

	require.Len(t, rec.events, 4)
	assert.False(t, rec.events[0].CacheHit)
	assert.True(t, rec.events[1].CacheHit)
	assert.Equal(t, analytics.EventZeroResult, rec.events[2].Type)
	assert.Equal(t, analytics.EventError, rec.events[3].Type)

	hits, misses, ok := svc.CacheStats()
	assert.True(t, ok)
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(proto.ModeExact, "zero_result")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(proto.ModeExact, "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(proto.ModeExact, "ok")))

	require.NoError(t, svc.InvalidateCache(ctx))
	_, err = svc.Search(ctx, proto.SearchRequest{Query: "rust"})
	require.NoError(t, err)
	assert.False(t, rec.events[len(rec.events)-1].CacheHit)
}

func TestCachedPhraseFlagFollowsQuery(t *testing.T) {
	qc := cache.New(&memStore{data: map[string]string{}}, time.Minute, nil)
	svc := New(index.NewHandle(buildIndex(fixture{"1", "", "rust go is a pairing"})),
		OptionsFromConfig(config.Default()), qc, nil, nil)
	ctx := context.Background()

	pair, err := svc.Search(ctx, proto.SearchRequest{Query: "rust go"})
	require.NoError(t, err)
	require.Len(t, pair.Results, 1)
	assert.True(t, pair.Results[0].ExactPhraseMatch)

	repeated, err := svc.Search(ctx, proto.SearchRequest{Query: "rust go rust"})
	require.NoError(t, err)
	require.Len(t, repeated.Results, 1)
	assert.False(t, repeated.Results[0].ExactPhraseMatch)

	again, err := svc.Search(ctx, proto.SearchRequest{Query: "Rust, go!"})
	require.NoError(t, err)
	assert.True(t, again.Results[0].ExactPhraseMatch)
}
