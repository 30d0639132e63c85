package provider

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/core"
)

// Feeds fans a request out to several news and social sources at once and
// merges what comes back. It implements FeedProvider.
type Feeds struct {
	news   []NewsSource
	social []SocialSource
	logger *zap.Logger
}

// NewFeeds creates a composite feed provider.
func NewFeeds(news []NewsSource, social []SocialSource, logger *zap.Logger) *Feeds {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feeds{news: news, social: social, logger: logger}
}

// GetNews implements FeedProvider. Items are de-duplicated by ID and
// returned newest first.
func (f *Feeds) GetNews(ctx context.Context, symbol string, daysBack int) ([]core.NewsItem, error) {
	sources := make([]namedFetch[core.NewsItem], len(f.news))
	for i, s := range f.news {
		sources[i] = namedFetch[core.NewsItem]{
			name:  s.Name(),
			fetch: func() ([]core.NewsItem, error) { return s.FetchNews(ctx, symbol, daysBack) },
		}
	}
	items, err := fanOut(f.logger, "news", symbol, sources, func(n core.NewsItem) string { return n.ID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].PublishedAt.After(items[j].PublishedAt) })
	return items, nil
}

// GetSocial implements FeedProvider.
func (f *Feeds) GetSocial(ctx context.Context, symbol string, daysBack int) ([]core.SocialPost, error) {
	sources := make([]namedFetch[core.SocialPost], len(f.social))
	for i, s := range f.social {
		sources[i] = namedFetch[core.SocialPost]{
			name:  s.Name(),
			fetch: func() ([]core.SocialPost, error) { return s.FetchPosts(ctx, symbol, daysBack) },
		}
	}
	posts, err := fanOut(f.logger, "social", symbol, sources, func(p core.SocialPost) string {
		return string(p.Platform) + ":" + p.ID
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

type namedFetch[T any] struct {
	name  string
	fetch func() ([]T, error)
}

// fanOut runs every fetch concurrently. Failed sources are logged and
// skipped; an error is returned only when all of them fail. Results keep
// source order and drop repeated keys.
func fanOut[T any](logger *zap.Logger, kind, symbol string, sources []namedFetch[T], key func(T) string) ([]T, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	type result struct {
		items []T
		err   error
	}
	results := make([]result, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src namedFetch[T]) {
			defer wg.Done()
			items, err := src.fetch()
			results[i] = result{items: items, err: err}
		}(i, src)
	}
	wg.Wait()

	var errs []error
	seen := make(map[string]bool)
	var merged []T
	for i, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			logger.Warn("feed source failed",
				zap.String("kind", kind),
				zap.String("source", sources[i].name),
				zap.String("symbol", symbol),
				zap.Error(r.err),
			)
			continue
		}
		for _, item := range r.items {
			k := key(item)
			if k != "" && seen[k] {
				continue
			}
			seen[k] = true
			merged = append(merged, item)
		}
	}

	if len(errs) == len(sources) {
		return nil, core.WrapError(core.ErrProviderFailed, errors.Join(errs...))
	}
	return merged, nil
}
