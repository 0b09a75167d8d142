// Package cache stores rendered search pages in Redis. Keys are namespaced
// by index build id, so publishing a new build makes every older entry
// unreachable even before it expires.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/proto"
)

const keyPrefix = "search:"

// Store is the subset of pkg/redis.Client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
	IsMiss(err error) bool
}

// Key identifies one cached page. Phrase is the exact-mode token sequence
// with duplicates kept; it decides each result's phrase flag, so "rust go"
// and "rust go rust" are different pages.
type Key struct {
	BuildID     string
	Mode        string
	Terms       []string
	Phrase      []string
	Page        int
	TopK        int
	ExpandLimit int
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, key Key) (*proto.SearchResponse, bool) {
	k := c.buildKey(key)
	data, err := c.store.Get(ctx, k)
	if err != nil {
		if !c.store.IsMiss(err) {
			c.logger.Error("cache get failed", "key", k, "error", err)
		}
		c.miss()
		return nil, false
	}
	var resp proto.SearchResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", k)
	return &resp, true
}

func (c *QueryCache) Set(ctx context.Context, key Key, resp *proto.SearchResponse) {
	k := c.buildKey(key)
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.store.Set(ctx, k, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached page or computes it once, even when many
// callers ask for the same key concurrently. Errors are never cached.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	computeFn func() (*proto.SearchResponse, error),
) (*proto.SearchResponse, bool, error) {
	if resp, ok := c.Get(ctx, key); ok {
		return resp, true, nil
	}
	k := c.buildKey(key)
	val, err, _ := c.group.Do(k, func() (interface{}, error) {
		resp, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*proto.SearchResponse), false, nil
}

// Invalidate drops every cached page.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) buildKey(key Key) string {
	raw := fmt.Sprintf("%s|%s|%s|phrase=%s|page=%d|topk=%d|expand=%d",
		key.BuildID, key.Mode, strings.Join(key.Terms, ","), strings.Join(key.Phrase, " "), key.Page, key.TopK, key.ExpandLimit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
