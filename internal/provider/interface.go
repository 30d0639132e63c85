// Package provider defines the data and feed sources the analysis engine
// consumes, plus composition helpers over them.
package provider

import (
	"context"

	"github.com/newthinker/prism/internal/core"
)

// DataProvider supplies quotes, fundamentals and technical indicators.
// Unknown symbols return core.ErrSymbolNotFound. Fields the provider cannot
// supply are left nil.
type DataProvider interface {
	Name() string
	GetMarketData(ctx context.Context, symbol string) (*core.MarketData, error)
	GetFundamentals(ctx context.Context, symbol string) (*core.FundamentalData, error)
	GetTechnical(ctx context.Context, symbol, timeframe string) (*core.TechnicalData, error)
}

// FeedProvider supplies news and social items for a lookback window.
// An empty result is not an error.
type FeedProvider interface {
	GetNews(ctx context.Context, symbol string, daysBack int) ([]core.NewsItem, error)
	GetSocial(ctx context.Context, symbol string, daysBack int) ([]core.SocialPost, error)
}

// NewsSource is a single news origin, such as one RSS feed.
type NewsSource interface {
	Name() string
	FetchNews(ctx context.Context, symbol string, daysBack int) ([]core.NewsItem, error)
}

// SocialSource is a single social origin, such as one subreddit set.
type SocialSource interface {
	Name() string
	FetchPosts(ctx context.Context, symbol string, daysBack int) ([]core.SocialPost, error)
}
