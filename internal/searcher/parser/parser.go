// Package parser turns raw user input into a QueryPlan. It applies the
// index's tokenizer so queries and documents are normalised identically.
package parser

import (
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/proto"
)

type QueryPlan struct {
	Mode     string
	RawQuery string
	// Terms holds distinct normalised terms in first-seen order (exact mode).
	Terms []string
	// Phrase is the full normalised token sequence, duplicates kept.
	Phrase []string
	// Prefixes holds distinct lower-cased prefixes (prefix and
	// autocomplete modes).
	Prefixes []string
}

// Empty reports whether the plan can match nothing. That is a normal outcome,
// not an error.
func (p *QueryPlan) Empty() bool {
	switch p.Mode {
	case proto.ModeExact:
		return len(p.Terms) == 0
	default:
		return len(p.Prefixes) == 0
	}
}

// Parse builds a plan for mode. Blank input is rejected; input that
// normalises to nothing yields an empty plan.
func Parse(tk *tokenizer.Tokenizer, mode string, query string) (*QueryPlan, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.InvalidArgumentf("%s query must not be empty", modeName(mode))
	}
	plan := &QueryPlan{
		Mode:     mode,
		RawQuery: query,
	}
	switch mode {
	case proto.ModeExact:
		for term := range tk.Terms(query) {
			plan.Phrase = append(plan.Phrase, term)
			if !slices.Contains(plan.Terms, term) {
				plan.Terms = append(plan.Terms, term)
			}
		}
	case proto.ModePrefix:
		plan.Prefixes = tk.Prefixes(query)
	case proto.ModeAutocomplete:
		// the last word is the one being typed
		if words := tk.Words(query); len(words) > 0 {
			plan.Prefixes = []string{words[len(words)-1]}
		}
	default:
		return nil, apperrors.InvalidArgumentf("unknown search mode %q", mode)
	}
	return plan, nil
}

func modeName(mode string) string {
	if mode == "" {
		return "search"
	}
	return mode
}
