// Package cache wraps a FeedProvider with a short-lived in-memory cache.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/provider"
)

// Feeds caches successful news and social lookups per symbol and lookback.
// Errors are never cached.
type Feeds struct {
	next  provider.FeedProvider
	items *gocache.Cache
}

// New wraps next with a TTL cache.
func New(next provider.FeedProvider, ttl time.Duration) *Feeds {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Feeds{next: next, items: gocache.New(ttl, 2*ttl)}
}

// GetNews implements provider.FeedProvider.
func (f *Feeds) GetNews(ctx context.Context, symbol string, daysBack int) ([]core.NewsItem, error) {
	return cached(f.items, key("news", symbol, daysBack), func() ([]core.NewsItem, error) {
		return f.next.GetNews(ctx, symbol, daysBack)
	})
}

// GetSocial implements provider.FeedProvider.
func (f *Feeds) GetSocial(ctx context.Context, symbol string, daysBack int) ([]core.SocialPost, error) {
	return cached(f.items, key("social", symbol, daysBack), func() ([]core.SocialPost, error) {
		return f.next.GetSocial(ctx, symbol, daysBack)
	})
}

// Len reports the number of live entries.
func (f *Feeds) Len() int { return f.items.ItemCount() }

// Flush drops every entry.
func (f *Feeds) Flush() { f.items.Flush() }

func key(kind, symbol string, daysBack int) string {
	return fmt.Sprintf("%s:%s:%d", kind, strings.ToUpper(symbol), daysBack)
}

func cached[T any](c *gocache.Cache, k string, load func() ([]T, error)) ([]T, error) {
	if v, ok := c.Get(k); ok {
		return clone(v.([]T)), nil
	}
	items, err := load()
	if err != nil {
		return nil, err
	}
	c.SetDefault(k, clone(items))
	return items, nil
}

// clone keeps callers from mutating cached slices.
func clone[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
