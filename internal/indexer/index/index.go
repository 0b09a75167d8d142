// Package index holds the in-memory search index: the document store, the
// inverted index, per-term document bitmaps and the term trie. An Index is
// built once and never mutated, so it can be read by any number of
// goroutines while a replacement is being built.
package index

import (
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring"

	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/trie"
)

type Index struct {
	buildID     string
	builtAt     time.Time
	source      string
	tk          *tokenizer.Tokenizer
	docs        []Document
	postings    map[string]PostingList
	docSets     map[string]*roaring.Bitmap
	trie        *trie.Trie
	totalTokens int64
}

// Stats summarises an index build.
type Stats struct {
	BuildID     string    `json:"build_id"`
	BuiltAt     time.Time `json:"built_at"`
	Source      string    `json:"source"`
	Documents   int       `json:"documents"`
	UniqueTerms int       `json:"unique_terms"`
	TotalTokens int64     `json:"total_tokens"`
	TrieNodes   int       `json:"trie_nodes"`
}

// Meta carries the identity of a build across a snapshot round trip.
type Meta struct {
	BuildID string
	BuiltAt time.Time
	Source  string
}

// Restore reassembles an Index from persisted parts. It rejects input that
// would break the index invariants: postings must reference known documents
// in ascending order and every document id must equal its position.
func Restore(meta Meta, tk *tokenizer.Tokenizer, docs []Document, entries []TermEntry) (*Index, error) {
	for i, d := range docs {
		if d.ID != uint32(i) {
			return nil, apperrors.IndexUnavailablef("document %d stored with id %d", i, d.ID)
		}
	}
	for _, e := range entries {
		if e.Term == "" {
			return nil, apperrors.IndexUnavailablef("empty term in dictionary")
		}
		var prev int64 = -1
		for _, p := range e.Postings {
			if int(p.DocID) >= len(docs) {
				return nil, apperrors.IndexUnavailablef("term %q references unknown document %d", e.Term, p.DocID)
			}
			if int64(p.DocID) <= prev {
				return nil, apperrors.IndexUnavailablef("postings for term %q out of order", e.Term)
			}
			prev = int64(p.DocID)
		}
	}
	return assemble(meta.BuildID, meta.BuiltAt, meta.Source, tk, docs, entries), nil
}

func (ix *Index) BuildID() string { return ix.buildID }

func (ix *Index) Meta() Meta {
	return Meta{BuildID: ix.buildID, BuiltAt: ix.builtAt, Source: ix.source}
}

// Tokenizer returns the tokenizer the index was built with. Queries must be
// normalised with it.
func (ix *Index) Tokenizer() *tokenizer.Tokenizer { return ix.tk }

func (ix *Index) Trie() *trie.Trie { return ix.trie }

func (ix *Index) DocCount() int { return len(ix.docs) }

// Document returns the stored document for id.
func (ix *Index) Document(id uint32) (Document, error) {
	if int(id) >= len(ix.docs) {
		return Document{}, fmt.Errorf("document %d: %w", id, apperrors.ErrNotFound)
	}
	return ix.docs[id], nil
}

// Documents returns the document store in id order. The slice must not be
// modified.
func (ix *Index) Documents() []Document { return ix.docs }

// Postings returns the posting list for an exact normalised term, or nil.
func (ix *Index) Postings(term string) PostingList {
	return ix.postings[term]
}

// DocSet returns the set of documents containing term. The bitmap is shared
// and must be cloned before mutation. Unknown terms yield nil.
func (ix *Index) DocSet(term string) *roaring.Bitmap {
	return ix.docSets[term]
}

// Entries lists the dictionary sorted by term, for persistence. The trie walk
// yields terms in rune order, which for valid UTF-8 is byte order.
func (ix *Index) Entries() []TermEntry {
	entries := make([]TermEntry, 0, len(ix.postings))
	ix.trie.Walk(func(term string, freq uint64) bool {
		if list, ok := ix.postings[term]; ok {
			entries = append(entries, TermEntry{Term: term, Frequency: freq, Postings: list})
		}
		return true
	})
	return entries
}

func (ix *Index) Stats() Stats {
	return Stats{
		BuildID:     ix.buildID,
		BuiltAt:     ix.builtAt,
		Source:      ix.source,
		Documents:   len(ix.docs),
		UniqueTerms: len(ix.postings),
		TotalTokens: ix.totalTokens,
		TrieNodes:   ix.trie.NodeCount(),
	}
}
