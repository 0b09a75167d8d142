package index

import (
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/trie"
)

// Builder accumulates documents for one index build. It is not safe for
// concurrent use; loaders fan in to a single goroutine that owns it.
type Builder struct {
	tk       *tokenizer.Tokenizer
	source   string
	docs     []Document
	postings map[string]PostingList
	termFreq map[string]uint64
}

func NewBuilder(tk *tokenizer.Tokenizer, source string) *Builder {
	return &Builder{
		tk:       tk,
		source:   source,
		postings: make(map[string]PostingList),
		termFreq: make(map[string]uint64),
	}
}

// Add tokenizes title and body separately, upserts one posting per distinct
// term and returns the id assigned to the document. Ids are dense and follow
// insertion order.
func (b *Builder) Add(doc Document) uint32 {
	id := uint32(len(b.docs))
	doc.ID = id

	termData := make(map[string]*Posting)
	// keeps first-seen order so postings are appended deterministically
	order := make([]string, 0, 64)
	upsert := func(term string, inTitle bool) {
		p, exists := termData[term]
		if !exists {
			p = &Posting{DocID: id}
			termData[term] = p
			order = append(order, term)
		}
		p.Count++
		if inTitle {
			p.InTitle = true
		}
	}

	tokens := 0
	for term := range b.tk.Terms(doc.Title) {
		upsert(term, true)
		tokens++
	}
	for term := range b.tk.Terms(doc.Body) {
		upsert(term, false)
		tokens++
	}
	doc.TokenCount = tokens

	for _, term := range order {
		p := termData[term]
		b.postings[term] = append(b.postings[term], *p)
		b.termFreq[term] += uint64(p.Count)
	}
	b.docs = append(b.docs, doc)
	return id
}

// DocCount returns the number of documents added so far.
func (b *Builder) DocCount() int {
	return len(b.docs)
}

// Build freezes the accumulated state into an immutable Index. The Builder
// must not be used afterwards.
func (b *Builder) Build() *Index {
	entries := make([]TermEntry, 0, len(b.postings))
	for term, postings := range b.postings {
		entries = append(entries, TermEntry{
			Term:      term,
			Frequency: b.termFreq[term],
			Postings:  postings,
		})
	}
	ix := assemble(uuid.NewString(), time.Now().UTC(), b.source, b.tk, b.docs, entries)
	b.docs = nil
	b.postings = nil
	b.termFreq = nil
	return ix
}

func assemble(buildID string, builtAt time.Time, source string, tk *tokenizer.Tokenizer, docs []Document, entries []TermEntry) *Index {
	ix := &Index{
		buildID:  buildID,
		builtAt:  builtAt,
		source:   source,
		tk:       tk,
		docs:     docs,
		postings: make(map[string]PostingList, len(entries)),
		docSets:  make(map[string]*roaring.Bitmap, len(entries)),
		trie:     trie.New(),
	}
	for _, d := range docs {
		ix.totalTokens += int64(d.TokenCount)
	}
	for _, e := range entries {
		if len(e.Postings) == 0 {
			continue
		}
		ix.postings[e.Term] = e.Postings
		bm := roaring.New()
		for _, p := range e.Postings {
			bm.Add(p.DocID)
		}
		bm.RunOptimize()
		ix.docSets[e.Term] = bm
		ix.trie.Insert(e.Term, e.Frequency)
	}
	return ix
}
