package trie

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrie(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"AutocompleteOrdering", testAutocompleteOrdering},
		{"TieBreakLexicographic", testTieBreakLexicographic},
		{"InsertIsAdditive", testInsertIsAdditive},
		{"UnknownPrefix", testUnknownPrefix},
		{"LimitAndEmptyPrefix", testLimitAndEmptyPrefix},
		{"PrefixProperty", testPrefixProperty},
		{"Unicode", testUnicode},
		{"Expand", testExpand},
		{"Walk", testWalk},
		{"ConcurrentReads", testConcurrentReads},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testAutocompleteOrdering(t *testing.T) {
	tr := New()
	tr.Insert("cat", 10)
	tr.Insert("car", 3)
	tr.Insert("cab", 1)
	tr.Insert("dog", 50)

	assert.Equal(t, []string{"cat", "car", "cab"}, tr.Autocomplete("ca", 3))
	assert.Equal(t, []string{"cat", "car"}, tr.Autocomplete("ca", 2))
	assert.Equal(t, []string{"cat"}, tr.Autocomplete("cat", 10))
}

func testTieBreakLexicographic(t *testing.T) {
	tr := New()
	for _, w := range []string{"beta", "bear", "bean", "beam"} {
		tr.Insert(w, 4)
	}
	tr.Insert("bees", 9)
	assert.Equal(t, []string{"bees", "beam", "bean", "bear", "beta"}, tr.Autocomplete("be", 10))
	assert.Equal(t, []string{"bees", "beam", "bean"}, tr.Autocomplete("be", 3))
}

func testInsertIsAdditive(t *testing.T) {
	tr := New()
	tr.Insert("go", 2)
	tr.Insert("go", 5)
	tr.Insert("gopher", 1)

	freqs := map[string]uint64{}
	tr.Walk(func(term string, freq uint64) bool {
		freqs[term] = freq
		return true
	})
	assert.Equal(t, map[string]uint64{"go": 7, "gopher": 1}, freqs, "interior nodes must not report as terms")
	assert.Equal(t, 2, tr.Len())
}

func testUnknownPrefix(t *testing.T) {
	tr := New()
	tr.Insert("search", 1)
	assert.Empty(t, tr.Autocomplete("sex", 5))
	assert.Empty(t, tr.Autocomplete("searching", 5), "prefix longer than any term")
	assert.Empty(t, tr.Autocomplete("se-", 5), "character outside the stored alphabet")
	assert.Empty(t, tr.Autocomplete(string([]byte{0xff}), 5))
}

func testLimitAndEmptyPrefix(t *testing.T) {
	tr := New()
	tr.Insert("alpha", 1)
	assert.Empty(t, tr.Autocomplete("a", 0))
	assert.Empty(t, tr.Autocomplete("", 10))
	assert.NotNil(t, tr.Autocomplete("zzz", 1))
}

func testPrefixProperty(t *testing.T) {
	words := []string{"rust", "rusty", "rustacean", "run", "runner", "ruby", "go", "gopher", "r"}
	tr := New()
	for i, w := range words {
		tr.Insert(w, uint64(i+1))
	}
	for _, w := range words {
		for n := 1; n <= len(w); n++ {
			prefix := w[:n]
			got := tr.Autocomplete(prefix, len(words))
			assert.Contains(t, got, w, "prefix %q must complete to %q", prefix, w)
			for _, s := range got {
				assert.True(t, strings.HasPrefix(s, prefix), "%q returned for prefix %q", s, prefix)
			}
		}
	}
}

func testUnicode(t *testing.T) {
	tr := New()
	tr.Insert("café", 2)
	tr.Insert("cafés", 1)
	tr.Insert("über", 1)
	assert.Equal(t, []string{"café", "cafés"}, tr.Autocomplete("caf", 5))
	assert.Equal(t, []string{"über"}, tr.Autocomplete("ü", 5))
}

func testExpand(t *testing.T) {
	tr := New()
	for i := 0; i < 20; i++ {
		tr.Insert(fmt.Sprintf("term%02d", i), uint64(i))
	}
	got := tr.Expand("term", 5)
	assert.Equal(t, []string{"term19", "term18", "term17", "term16", "term15"}, got)
	assert.Len(t, tr.Expand("term1", 100), 10)
}

func testWalk(t *testing.T) {
	tr := New()
	words := []string{"delta", "alpha", "charlie", "bravo", "al"}
	for _, w := range words {
		tr.Insert(w, 1)
	}
	var seen []string
	tr.Walk(func(term string, freq uint64) bool {
		seen = append(seen, term)
		return true
	})
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)
	assert.Equal(t, sorted, seen)

	count := 0
	tr.Walk(func(string, uint64) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count)
}

func testConcurrentReads(t *testing.T) {
	tr := New()
	for i := 0; i < 1000; i++ {
		tr.Insert(fmt.Sprintf("word%d", i), uint64(i%17))
	}
	want := tr.Autocomplete("word1", 10)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				assert.Equal(t, want, tr.Autocomplete("word1", 10))
			}
		}()
	}
	wg.Wait()
}
