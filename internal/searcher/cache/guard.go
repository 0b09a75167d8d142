package cache

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/resilience"
)

// guarded routes every Store call through a circuit breaker. Misses are
// normal traffic and never trip it.
type guarded struct {
	store   Store
	breaker *resilience.CircuitBreaker
}

// Guard wraps store so that once it keeps failing, queries skip the cache
// without waiting on it until the breaker lets a probe through.
func Guard(store Store, breaker *resilience.CircuitBreaker) Store {
	return &guarded{store: store, breaker: breaker}
}

func (g *guarded) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := g.breaker.Execute(func() error {
		var err error
		v, err = g.store.Get(ctx, key)
		return err
	}, g.store.IsMiss)
	return v, err
}

func (g *guarded) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return g.breaker.Execute(func() error {
		return g.store.Set(ctx, key, value, ttl)
	}, nil)
}

func (g *guarded) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := g.breaker.Execute(func() error {
		var err error
		n, err = g.store.FlushByPattern(ctx, pattern)
		return err
	}, nil)
	return n, err
}

func (g *guarded) IsMiss(err error) bool {
	return g.store.IsMiss(err)
}
