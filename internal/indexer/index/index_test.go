package index

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/tokenizer"
)

func buildSample(t *testing.T) *Index {
	t.Helper()
	b := NewBuilder(tokenizer.New(tokenizer.DefaultOptions()), "test")
	b.Add(Document{Filename: "rust.txt", Title: "Rust", Body: "rust is a systems language. rust is fast."})
	b.Add(Document{Filename: "go.txt", Title: "Go", Body: "go is simple. rust is mentioned once."})
	b.Add(Document{Filename: "empty.txt", Title: "", Body: ""})
	return b.Build()
}

func TestBuilderAssignsDenseIDs(t *testing.T) {
	ix := buildSample(t)
	require.Equal(t, 3, ix.DocCount())
	for i, d := range ix.Documents() {
		assert.Equal(t, uint32(i), d.ID)
	}
	doc, err := ix.Document(1)
	require.NoError(t, err)
	assert.Equal(t, "go.txt", doc.Filename)

	_, err = ix.Document(42)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPostings(t *testing.T) {
	ix := buildSample(t)

	rust := ix.Postings("rust")
	require.Len(t, rust, 2)
	assert.Equal(t, Posting{DocID: 0, Count: 3, InTitle: true}, rust[0])
	assert.Equal(t, Posting{DocID: 1, Count: 1, InTitle: false}, rust[1])

	assert.Nil(t, ix.Postings("python"))
}

func TestEntriesSortedByTerm(t *testing.T) {
	ix := buildSample(t)
	entries := ix.Entries()
	require.Len(t, entries, ix.Stats().UniqueTerms)
	terms := make([]string, len(entries))
	for i, e := range entries {
		terms[i] = e.Term
		assert.Equal(t, ix.Postings(e.Term), e.Postings)
	}
	assert.True(t, sort.StringsAreSorted(terms), "entries out of order: %v", terms)
}

func TestEveryTrieTermHasPostings(t *testing.T) {
	ix := buildSample(t)
	terms := 0
	ix.Trie().Walk(func(term string, freq uint64) bool {
		terms++
		assert.NotEmpty(t, ix.Postings(term), "trie term %q without postings", term)
		var sum uint64
		for _, p := range ix.Postings(term) {
			sum += uint64(p.Count)
		}
		assert.Equal(t, sum, freq, "frequency of %q", term)
		return true
	})
	assert.Equal(t, ix.Stats().UniqueTerms, terms)
}

func TestDocSetMatchesPostings(t *testing.T) {
	ix := buildSample(t)
	set := ix.DocSet("rust")
	require.NotNil(t, set)
	assert.Equal(t, []uint32{0, 1}, set.ToArray())
	assert.Nil(t, ix.DocSet("missing"))
}

func TestStats(t *testing.T) {
	ix := buildSample(t)
	s := ix.Stats()
	assert.Equal(t, 3, s.Documents)
	assert.NotEmpty(t, s.BuildID)
	assert.Equal(t, "test", s.Source)
	// rust(title) + 8 body tokens + go(title) + 7 body tokens
	assert.Equal(t, int64(17), s.TotalTokens)
}

func TestRestoreRoundTrip(t *testing.T) {
	ix := buildSample(t)
	restored, err := Restore(ix.Meta(), ix.Tokenizer(), ix.Documents(), ix.Entries())
	require.NoError(t, err)
	assert.Equal(t, ix.Stats(), restored.Stats())
	assert.Equal(t, ix.Trie().Autocomplete("r", 5), restored.Trie().Autocomplete("r", 5))
}

func TestRestoreRejectsCorruptInput(t *testing.T) {
	tk := tokenizer.New(tokenizer.DefaultOptions())
	docs := []Document{{ID: 0}, {ID: 1}}
	meta := Meta{BuildID: "b", BuiltAt: time.Now()}

	tests := []struct {
		name    string
		docs    []Document
		entries []TermEntry
	}{
		{"unknown document", docs, []TermEntry{{Term: "x", Frequency: 1, Postings: PostingList{{DocID: 7, Count: 1}}}}},
		{"unordered postings", docs, []TermEntry{{Term: "x", Frequency: 2, Postings: PostingList{{DocID: 1, Count: 1}, {DocID: 0, Count: 1}}}}},
		{"sparse ids", []Document{{ID: 0}, {ID: 5}}, nil},
		{"empty term", docs, []TermEntry{{Term: "", Postings: PostingList{{DocID: 0, Count: 1}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Restore(meta, tk, tt.docs, tt.entries)
			assert.ErrorIs(t, err, apperrors.ErrIndexUnavailable)
		})
	}
}

func TestHandle(t *testing.T) {
	h := NewHandle(nil)
	assert.False(t, h.Ready())
	_, err := h.Load()
	assert.ErrorIs(t, err, apperrors.ErrIndexUnavailable)

	first := buildSample(t)
	assert.Nil(t, h.Swap(first))
	got, err := h.Load()
	require.NoError(t, err)
	assert.Same(t, first, got)

	second := buildSample(t)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ix, err := h.Load()
			assert.NoError(t, err)
			assert.Equal(t, 3, ix.DocCount())
		}()
	}
	assert.Same(t, first, h.Swap(second))
	wg.Wait()
}
