package executor

import (
	"context"
	"log/slog"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/trie"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/proto"
)

// SearchResult is the complete ordered result list of one query, before
// pagination.
type SearchResult struct {
	Query         string             `json:"query"`
	Mode          string             `json:"mode"`
	TotalHits     int                `json:"total_hits"`
	Results       []ranker.ScoredDoc `json:"results"`
	ExpandedTerms []string           `json:"expanded_terms,omitempty"`
	TermStats     map[string]int     `json:"term_stats"`
}

type Executor struct {
	policy     string
	titleBonus float64
	logger     *slog.Logger
}

// New creates an Executor. policy is config.MatchAny or config.MatchAll.
func New(policy string, titleBonus float64) *Executor {
	if policy != config.MatchAll {
		policy = config.MatchAny
	}
	return &Executor{
		policy:     policy,
		titleBonus: titleBonus,
		logger:     slog.Default().With("component", "query-executor"),
	}
}

// Execute runs an exact or prefix plan against ix. Prefix plans expand every
// prefix through the trie (at most expandLimit terms each) and then share the
// exact-mode retrieval and scoring path.
func (e *Executor) Execute(ctx context.Context, ix *index.Index, plan *parser.QueryPlan, expandLimit int) (*SearchResult, error) {
	result := &SearchResult{
		Query:     plan.RawQuery,
		Mode:      plan.Mode,
		Results:   []ranker.ScoredDoc{},
		TermStats: make(map[string]int),
	}
	if plan.Empty() {
		return result, nil
	}

	var groups []ranker.Group
	switch plan.Mode {
	case proto.ModePrefix:
		seen := make(map[string]struct{})
		for _, prefix := range plan.Prefixes {
			terms := Expand(ix.Trie(), prefix, expandLimit)
			groups = append(groups, terms)
			for _, t := range terms {
				if _, dup := seen[t]; !dup {
					seen[t] = struct{}{}
					result.ExpandedTerms = append(result.ExpandedTerms, t)
				}
			}
		}
	default:
		for _, term := range plan.Terms {
			groups = append(groups, ranker.Group{term})
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := e.candidates(ix, groups, result.TermStats)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Results = ranker.Rank(ix, groups, candidates, ranker.RankParams{
		TitleBonus: e.titleBonus,
		Coordinate: e.policy == config.MatchAny,
	})
	result.TotalHits = len(result.Results)

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"mode", plan.Mode,
		"groups", len(groups),
		"expanded_terms", len(result.ExpandedTerms),
		"candidates", candidates.GetCardinality(),
		"results", result.TotalHits,
	)
	return result, nil
}

// candidates unions the document sets of each group's terms, then combines
// groups by the match policy.
func (e *Executor) candidates(ix *index.Index, groups []ranker.Group, stats map[string]int) *roaring.Bitmap {
	perGroup := make([]*roaring.Bitmap, 0, len(groups))
	for _, group := range groups {
		sets := make([]*roaring.Bitmap, 0, len(group))
		for _, term := range group {
			if set := ix.DocSet(term); set != nil {
				sets = append(sets, set)
				stats[term] = int(set.GetCardinality())
			}
		}
		perGroup = append(perGroup, roaring.FastOr(sets...))
	}
	if len(perGroup) == 0 {
		return roaring.New()
	}
	if e.policy == config.MatchAll {
		return roaring.FastAnd(perGroup...)
	}
	return roaring.FastOr(perGroup...)
}

// Expand returns up to limit completions of prefix. When prefix is itself an
// indexed term it is always part of the expansion, so a prefix query never
// matches fewer documents than the same exact query.
func Expand(t *trie.Trie, prefix string, limit int) []string {
	terms := t.Expand(prefix, limit)
	if limit <= 0 || !t.Contains(prefix) {
		return terms
	}
	for _, term := range terms {
		if term == prefix {
			return terms
		}
	}
	if len(terms) < limit {
		return append(terms, prefix)
	}
	terms[len(terms)-1] = prefix
	return terms
}
