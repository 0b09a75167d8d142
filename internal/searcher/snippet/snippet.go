// Package snippet extracts a short excerpt of a document around the first
// word that matches a query term.
package snippet

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const ellipsis = "..."

// Options control excerpt size, in runes.
type Options struct {
	Context  int
	Fallback int
}

func DefaultOptions() Options {
	return Options{Context: 200, Fallback: 300}
}

// Extract returns Context runes either side of the first whole word in body
// that lower-cases to one of terms. Without a match it returns the first
// Fallback runes. Cut edges are marked with "..." and runs of whitespace are
// collapsed.
func Extract(body string, terms []string, opts Options) string {
	if opts.Context <= 0 {
		opts.Context = DefaultOptions().Context
	}
	if opts.Fallback <= 0 {
		opts.Fallback = DefaultOptions().Fallback
	}
	start, end, ok := firstMatch(body, terms)
	if !ok {
		return excerpt(body, 0, 0, 0, opts.Fallback)
	}
	return excerpt(body, start, end, opts.Context, opts.Context)
}

// firstMatch returns the byte range of the first matching word.
func firstMatch(body string, terms []string) (int, int, bool) {
	if len(terms) == 0 {
		return 0, 0, false
	}
	want := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		want[t] = struct{}{}
	}
	i := 0
	for i < len(body) {
		r, size := utf8.DecodeRuneInString(body[i:])
		if !isWordRune(r) {
			i += size
			continue
		}
		j := i + size
		for j < len(body) {
			r, size := utf8.DecodeRuneInString(body[j:])
			if !isWordRune(r) {
				break
			}
			j += size
		}
		if _, ok := want[strings.ToLower(body[i:j])]; ok {
			return i, j, true
		}
		i = j
	}
	return 0, 0, false
}

// excerpt keeps the match plus up to before runes ahead of start and after
// runes past end.
func excerpt(body string, start, end, before, after int) string {
	from := start
	for n := 0; n < before && from > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(body[:from])
		from -= size
	}
	to := end
	for n := 0; n < after && to < len(body); n++ {
		_, size := utf8.DecodeRuneInString(body[to:])
		to += size
	}

	var b strings.Builder
	if from > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(strings.Join(strings.Fields(body[from:to]), " "))
	if to < len(body) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
