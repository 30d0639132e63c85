// Package cache holds recently computed sentiment per symbol. It backs the
// sentiment endpoint only; analyses always aggregate fresh feed data.
package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/newthinker/prism/internal/core"
)

// SentimentCache stores aggregated sentiment with a TTL. Get on a missing
// or expired symbol returns core.ErrCacheMiss.
type SentimentCache interface {
	Get(ctx context.Context, symbol string) (*core.SentimentData, error)
	Set(ctx context.Context, data core.SentimentData) error
	Delete(ctx context.Context, symbol string) error
}

func cacheKey(symbol string) string {
	return "prism:sentiment:" + strings.ToUpper(symbol)
}

// Memory is an in-process SentimentCache.
type Memory struct {
	items *gocache.Cache
}

// NewMemory creates an in-process cache.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Memory{items: gocache.New(ttl, 2*ttl)}
}

func (m *Memory) Get(ctx context.Context, symbol string) (*core.SentimentData, error) {
	v, ok := m.items.Get(cacheKey(symbol))
	if !ok {
		return nil, core.ErrCacheMiss
	}
	data := v.(core.SentimentData)
	data.Sources = append([]core.SentimentSource(nil), data.Sources...)
	data.TopKeywords = append([]string(nil), data.TopKeywords...)
	return &data, nil
}

func (m *Memory) Set(ctx context.Context, data core.SentimentData) error {
	data.Sources = append([]core.SentimentSource(nil), data.Sources...)
	data.TopKeywords = append([]string(nil), data.TopKeywords...)
	m.items.SetDefault(cacheKey(data.Symbol), data)
	return nil
}

func (m *Memory) Delete(ctx context.Context, symbol string) error {
	m.items.Delete(cacheKey(symbol))
	return nil
}
