// Package trie implements the term dictionary used for autocomplete and
// prefix expansion. Nodes live in a single arena slice and reference their
// children by index, so a trie of N characters costs N small structs instead
// of N maps.
//
// A Trie is written only while an index is being built. Once built it is
// read-only and safe for any number of concurrent readers.
package trie

import (
	"container/heap"
	"sort"
	"unicode/utf8"
)

const root int32 = 0

type edge struct {
	r     rune
	child int32
}

type node struct {
	// sorted by rune
	edges    []edge
	freq     uint64
	terminal bool
}

// Suggestion is a completed term and its aggregate frequency.
type Suggestion struct {
	Term      string `json:"term"`
	Frequency uint64 `json:"frequency"`
}

type Trie struct {
	nodes []node
	terms int
}

func New() *Trie {
	return &Trie{nodes: make([]node, 1, 64)}
}

// Insert adds term, marks it terminal and adds weight to its frequency.
// Inserting the same term again only accumulates frequency.
func (t *Trie) Insert(term string, weight uint64) {
	if term == "" {
		return
	}
	cur := root
	for _, r := range term {
		next, ok := t.child(cur, r)
		if !ok {
			next = t.addChild(cur, r)
		}
		cur = next
	}
	n := &t.nodes[cur]
	if !n.terminal {
		n.terminal = true
		t.terms++
	}
	n.freq += weight
}

// Len returns the number of distinct terms.
func (t *Trie) Len() int {
	return t.terms
}

// NodeCount returns the arena size, root included.
func (t *Trie) NodeCount() int {
	return len(t.nodes)
}

// Autocomplete returns up to limit terms starting with prefix, ordered by
// descending frequency and then lexicographically. An unknown prefix yields
// an empty result. Cost is proportional to the prefix length plus the size
// of the prefix's subtree.
func (t *Trie) Autocomplete(prefix string, limit int) []string {
	top := t.TopK(prefix, limit)
	out := make([]string, len(top))
	for i, s := range top {
		out[i] = s.Term
	}
	return out
}

// Expand returns up to limit full terms for prefix, in the same order as
// Autocomplete, for use as an OR-expansion of a prefix query.
func (t *Trie) Expand(prefix string, limit int) []string {
	return t.Autocomplete(prefix, limit)
}

// TopK is Autocomplete with frequencies attached.
func (t *Trie) TopK(prefix string, limit int) []Suggestion {
	if limit <= 0 || prefix == "" {
		return []Suggestion{}
	}
	start, ok := t.find(prefix)
	if !ok {
		return []Suggestion{}
	}

	h := &suggestionHeap{}
	type frame struct {
		idx   int32
		r     rune
		depth int
	}
	base := []rune(prefix)
	baseLen := len(base)
	path := base
	stack := []frame{{idx: start}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > 0 {
			path = append(path[:baseLen+f.depth-1], f.r)
		}
		n := &t.nodes[f.idx]
		if n.terminal {
			h.offer(n.freq, path, limit)
		}
		for i := len(n.edges) - 1; i >= 0; i-- {
			e := n.edges[i]
			stack = append(stack, frame{idx: e.child, r: e.r, depth: f.depth + 1})
		}
	}

	out := make([]Suggestion, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Suggestion)
	}
	return out
}

// Walk visits every term with its frequency in lexicographic rune order.
// Returning false from fn stops the walk.
func (t *Trie) Walk(fn func(term string, freq uint64) bool) {
	var path []rune
	var visit func(idx int32) bool
	visit = func(idx int32) bool {
		n := &t.nodes[idx]
		if n.terminal && !fn(string(path), n.freq) {
			return false
		}
		for _, e := range n.edges {
			path = append(path, e.r)
			if !visit(e.child) {
				return false
			}
			path = path[:len(path)-1]
		}
		return true
	}
	visit(root)
}

func (t *Trie) find(s string) (int32, bool) {
	if !utf8.ValidString(s) {
		return 0, false
	}
	cur := root
	for _, r := range s {
		next, ok := t.child(cur, r)
		if !ok {
			return 0, false
		}
		cur = next
	}
	return cur, true
}

func (t *Trie) child(idx int32, r rune) (int32, bool) {
	edges := t.nodes[idx].edges
	i := sort.Search(len(edges), func(i int) bool { return edges[i].r >= r })
	if i < len(edges) && edges[i].r == r {
		return edges[i].child, true
	}
	return 0, false
}

func (t *Trie) addChild(parent int32, r rune) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{})
	edges := t.nodes[parent].edges
	i := sort.Search(len(edges), func(i int) bool { return edges[i].r >= r })
	edges = append(edges, edge{})
	copy(edges[i+1:], edges[i:])
	edges[i] = edge{r: r, child: idx}
	t.nodes[parent].edges = edges
	return idx
}

// suggestionHeap is a min-heap whose root is the weakest suggestion kept so
// far: lowest frequency, and among equals the lexicographically largest term.
type suggestionHeap []Suggestion

func (h suggestionHeap) Len() int { return len(h) }

func (h suggestionHeap) Less(i, j int) bool {
	return weaker(h[i].Frequency, h[i].Term, h[j].Frequency, h[j].Term)
}

func (h suggestionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *suggestionHeap) Push(x interface{}) {
	*h = append(*h, x.(Suggestion))
}

func (h *suggestionHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// offer keeps the candidate if it beats the current weakest entry. The term
// string is only materialised when it will be kept.
func (h *suggestionHeap) offer(freq uint64, path []rune, limit int) {
	if h.Len() < limit {
		heap.Push(h, Suggestion{Term: string(path), Frequency: freq})
		return
	}
	weakest := (*h)[0]
	if freq < weakest.Frequency {
		return
	}
	term := string(path)
	if !weaker(weakest.Frequency, weakest.Term, freq, term) {
		return
	}
	(*h)[0] = Suggestion{Term: term, Frequency: freq}
	heap.Fix(h, 0)
}

func weaker(fa uint64, ta string, fb uint64, tb string) bool {
	if fa != fb {
		return fa < fb
	}
	return ta > tb
}
