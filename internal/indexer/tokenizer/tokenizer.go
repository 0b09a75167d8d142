// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input, splits on non-alphanumeric boundaries, and drops
// tokens outside the configured length window. Stop-word and numeric-token
// removal are optional. The same Tokenizer must be used for indexing and for
// queries, otherwise indexed terms become unreachable.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Options controls normalisation. The zero value behaves like DefaultOptions.
type Options struct {
	MinLength   int
	MaxLength   int
	StopWords   bool
	DropNumeric bool
}

// DefaultOptions keeps every non-empty token.
func DefaultOptions() Options {
	return Options{MinLength: 1}
}

// Tokenizer turns raw text into normalised terms. It is immutable and safe
// for concurrent use.
type Tokenizer struct {
	opts Options
}

func New(opts Options) *Tokenizer {
	if opts.MinLength < 1 {
		opts.MinLength = 1
	}
	return &Tokenizer{opts: opts}
}

// Options returns the settings the tokenizer was built with.
func (t *Tokenizer) Options() Options {
	return t.opts
}

// Terms returns a lazy sequence of normalised terms. The sequence can be
// ranged over any number of times.
func (t *Tokenizer) Terms(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		rest := text
		for len(rest) > 0 {
			start := strings.IndexFunc(rest, isWordRune)
			if start < 0 {
				return
			}
			rest = rest[start:]
			end := strings.IndexFunc(rest, isSeparator)
			if end < 0 {
				end = len(rest)
			}
			word := rest[:end]
			rest = rest[end:]
			if term, ok := t.normalize(word); ok {
				if !yield(term) {
					return
				}
			}
		}
	}
}

// Words splits text into lower-cased words with no filtering at all.
func (t *Tokenizer) Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), isSeparator)
}

// Prefixes splits a prefix-search query into distinct lower-cased words. It
// skips the length and stop-word filters, since a prefix of a valid term may
// itself be shorter than MinLength or be a stop word.
func (t *Tokenizer) Prefixes(query string) []string {
	words := t.Words(query)
	seen := make(map[string]struct{}, len(words))
	out := words[:0]
	for _, w := range words {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func (t *Tokenizer) normalize(word string) (string, bool) {
	term := strings.ToLower(word)
	n := utf8.RuneCountInString(term)
	if n < t.opts.MinLength {
		return "", false
	}
	if t.opts.MaxLength > 0 && n > t.opts.MaxLength {
		return "", false
	}
	if t.opts.StopWords {
		if _, isStop := stopWords[term]; isStop {
			return "", false
		}
	}
	if t.opts.DropNumeric && isNumeric(term) {
		return "", false
	}
	return term, true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isSeparator(r rune) bool {
	return !isWordRune(r)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
