package index

// Posting records how often a term occurs in one document and whether any
// of those occurrences are in the title.
type Posting struct {
	DocID   uint32 `json:"d"`
	Count   uint32 `json:"c"`
	InTitle bool   `json:"t,omitempty"`
}

// PostingList is ordered by ascending DocID.
type PostingList []Posting

// TermEntry is one dictionary row: the term, its corpus-wide occurrence
// count and its postings.
type TermEntry struct {
	Term      string
	Frequency uint64
	Postings  PostingList
}
