// Package ranker scores candidate documents. A document's score is the sum
// over matched terms of tf, multiplied by the title bonus when the term is in
// the title, divided by a size normalisation that grows with document size.
package ranker

import (
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
)

// DefaultTitleBonus is the multiplier applied to terms found in the title.
const DefaultTitleBonus = 2.0

type ScoredDoc struct {
	DocID       uint32  `json:"doc_id"`
	Score       float64 `json:"score"`
	Occurrences int     `json:"occurrences"`
	InTitle     bool    `json:"in_title"`
	// MatchedGroups counts the query words (or prefixes) the document matched.
	MatchedGroups int `json:"matched_groups"`
}

type RankParams struct {
	TitleBonus float64
	// Coordinate scales scores by matched groups / total groups.
	Coordinate bool
}

// Group is the set of index terms one query word stands for: the word itself
// in exact mode, its trie expansion in prefix mode.
type Group []string

// SizeNormalization is 1 + ln(1 + size/1KiB): strictly positive and
// increasing in size.
func SizeNormalization(sizeBytes int64) float64 {
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	return 1 + math.Log1p(float64(sizeBytes)/1024)
}

// TermScore is the contribution of one posting before size normalisation.
func TermScore(p index.Posting, titleBonus float64) float64 {
	tf := float64(p.Count)
	if p.InTitle {
		return tf * titleBonus
	}
	return tf
}

// Rank scores every candidate and returns them ordered by descending score,
// ties broken by ascending document id. Ordering uses the exact score; the
// returned scores are rounded to four decimals. Candidates that match no term
// are dropped rather than scored zero.
func Rank(ix *index.Index, groups []Group, candidates *roaring.Bitmap, params RankParams) []ScoredDoc {
	if candidates == nil || candidates.IsEmpty() || len(groups) == 0 {
		return []ScoredDoc{}
	}
	if params.TitleBonus <= 0 {
		params.TitleBonus = DefaultTitleBonus
	}

	type acc struct {
		raw         float64
		occurrences int
		inTitle     bool
		groups      int
		lastGroup   int
	}
	scores := make(map[uint32]*acc, candidates.GetCardinality())
	seenTerm := make(map[string]struct{})
	for gi, group := range groups {
		for _, term := range group {
			_, dup := seenTerm[term]
			seenTerm[term] = struct{}{}
			for _, p := range ix.Postings(term) {
				if !candidates.Contains(p.DocID) {
					continue
				}
				a, ok := scores[p.DocID]
				if !ok {
					a = &acc{lastGroup: -1}
					scores[p.DocID] = a
				}
				if a.lastGroup != gi {
					a.groups++
					a.lastGroup = gi
				}
				// a term shared by two groups is counted once
				if dup {
					continue
				}
				a.raw += TermScore(p, params.TitleBonus)
				a.occurrences += int(p.Count)
				a.inTitle = a.inTitle || p.InTitle
			}
		}
	}

	result := make([]ScoredDoc, 0, len(scores))
	for docID, a := range scores {
		doc, err := ix.Document(docID)
		if err != nil {
			continue
		}
		score := a.raw / SizeNormalization(doc.Size)
		if params.Coordinate {
			score *= float64(a.groups) / float64(len(groups))
		}
		result = append(result, ScoredDoc{
			DocID:         docID,
			Score:         score,
			Occurrences:   a.occurrences,
			InTitle:       a.inTitle,
			MatchedGroups: a.groups,
		})
	}
	Sort(result)
	for i := range result {
		result[i].Score = math.Round(result[i].Score*10000) / 10000
	}
	return result
}

// Sort orders by descending score, then ascending document id.
func Sort(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocID < docs[j].DocID
	})
}
