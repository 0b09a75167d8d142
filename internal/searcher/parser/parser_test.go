package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/proto"
)

func TestParse(t *testing.T) {
	tk := tokenizer.New(tokenizer.Options{MinLength: 2, StopWords: true})
	tests := []struct {
		name     string
		mode     string
		query    string
		terms    []string
		phrase   []string
		prefixes []string
		empty    bool
	}{
		{
			name:   "exact dedupes terms but keeps phrase",
			mode:   proto.ModeExact,
			query:  "Rust, rust BOOK",
			terms:  []string{"rust", "book"},
			phrase: []string{"rust", "rust", "book"},
		},
		{
			name:  "exact drops stop words",
			mode:  proto.ModeExact,
			query: "the and",
			empty: true,
		},
		{
			name:     "prefix keeps short words",
			mode:     proto.ModePrefix,
			query:    "Ru bo ru",
			prefixes: []string{"ru", "bo"},
		},
		{
			name:     "autocomplete uses the last word",
			mode:     proto.ModeAutocomplete,
			query:    "systems pro",
			prefixes: []string{"pro"},
		},
		{
			name:  "autocomplete on punctuation only",
			mode:  proto.ModeAutocomplete,
			query: "?!",
			empty: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Parse(tk, tt.mode, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.mode, plan.Mode)
			assert.Equal(t, tt.query, plan.RawQuery)
			assert.Equal(t, tt.empty, plan.Empty())
			if !tt.empty {
				assert.Equal(t, tt.terms, plan.Terms)
				assert.Equal(t, tt.phrase, plan.Phrase)
				assert.Equal(t, tt.prefixes, plan.Prefixes)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	tk := tokenizer.New(tokenizer.DefaultOptions())
	for _, tt := range []struct{ mode, query string }{
		{proto.ModeExact, ""},
		{proto.ModePrefix, "   "},
		{proto.ModeAutocomplete, "\t"},
		{"fuzzy", "rust"},
	} {
		_, err := Parse(tk, tt.mode, tt.query)
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument, "mode=%q query=%q", tt.mode, tt.query)
	}
}
