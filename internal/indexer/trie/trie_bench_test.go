package trie

import (
	"fmt"
	"testing"
)

func benchTrie(n int) *Trie {
	t := New()
	for i := range n {
		t.Insert(fmt.Sprintf("term%06d", i), uint64(i%97+1))
	}
	return t
}

func BenchmarkInsert(b *testing.B) {
	terms := make([]string, 10000)
	for i := range terms {
		terms[i] = fmt.Sprintf("term%06d", i)
	}
	b.ReportAllocs()
	for b.Loop() {
		t := New()
		for _, term := range terms {
			t.Insert(term, 1)
		}
	}
}

func BenchmarkAutocomplete(b *testing.B) {
	t := benchTrie(100000)
	for _, prefix := range []string{"term0", "term00", "term0000", "zzz"} {
		b.Run(prefix, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = t.Autocomplete(prefix, 10)
			}
		})
	}
}

func BenchmarkExpand(b *testing.B) {
	t := benchTrie(100000)
	for _, limit := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("limit_%d", limit), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = t.Expand("term0", limit)
			}
		})
	}
}
