package executor

import (
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/tokenizer"
)

// PhraseMatch reports whether phrase occurs as a contiguous run of tokens in
// the document title or body. Phrases shorter than two terms never match.
func PhraseMatch(tk *tokenizer.Tokenizer, doc index.Document, phrase []string) bool {
	if len(phrase) < 2 {
		return false
	}
	return containsRun(tk, doc.Title, phrase) || containsRun(tk, doc.Body, phrase)
}

func containsRun(tk *tokenizer.Tokenizer, text string, phrase []string) bool {
	// window holds the last len(phrase) tokens as a ring
	window := make([]string, len(phrase))
	seen := 0
	for term := range tk.Terms(text) {
		window[seen%len(phrase)] = term
		seen++
		if seen < len(phrase) {
			continue
		}
		start := seen % len(phrase)
		match := true
		for i, want := range phrase {
			if window[(start+i)%len(phrase)] != want {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
