// Package static serves market data and feeds from in-memory fixtures.
package static

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/indicator"
)

// Fixtures is the on-disk fixture format. Map keys are upper-case symbols.
type Fixtures struct {
	Market       map[string]core.MarketData      `json:"market"`
	Fundamentals map[string]core.FundamentalData `json:"fundamentals"`
	Technical    map[string]core.TechnicalData   `json:"technical"`
	Bars         map[string][]core.OHLCV         `json:"bars"`
	News         []core.NewsItem                 `json:"news"`
	Social       []core.SocialPost               `json:"social"`
}

// Load reads fixtures from a JSON file.
func Load(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	var f Fixtures
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixtures: %w", err)
	}
	return &f, nil
}

// Provider implements provider.DataProvider and provider.FeedProvider.
type Provider struct {
	fx  Fixtures
	now func() time.Time
}

// New creates a provider over fx. Symbols are matched case-insensitively.
func New(fx Fixtures) *Provider {
	p := &Provider{now: time.Now}
	p.fx.Market = upperKeys(fx.Market)
	p.fx.Fundamentals = upperKeys(fx.Fundamentals)
	p.fx.Technical = upperKeys(fx.Technical)
	p.fx.Bars = upperKeys(fx.Bars)
	p.fx.News = fx.News
	p.fx.Social = fx.Social
	return p
}

// SetClock overrides the clock used for lookback filtering.
func (p *Provider) SetClock(now func() time.Time) {
	p.now = now
}

func (p *Provider) Name() string { return "static" }

func (p *Provider) known(symbol string) bool {
	_, m := p.fx.Market[symbol]
	_, f := p.fx.Fundamentals[symbol]
	_, t := p.fx.Technical[symbol]
	_, b := p.fx.Bars[symbol]
	return m || f || t || b
}

// GetMarketData implements provider.DataProvider.
func (p *Provider) GetMarketData(ctx context.Context, symbol string) (*core.MarketData, error) {
	symbol = strings.ToUpper(symbol)
	if !p.known(symbol) {
		return nil, core.ErrSymbolNotFound
	}
	md, ok := p.fx.Market[symbol]
	if !ok {
		return nil, core.ErrNoData
	}
	md.Symbol = symbol
	return &md, nil
}

// GetFundamentals implements provider.DataProvider.
func (p *Provider) GetFundamentals(ctx context.Context, symbol string) (*core.FundamentalData, error) {
	symbol = strings.ToUpper(symbol)
	if !p.known(symbol) {
		return nil, core.ErrSymbolNotFound
	}
	f, ok := p.fx.Fundamentals[symbol]
	if !ok {
		return nil, core.ErrNoData
	}
	f.Symbol = symbol
	return &f, nil
}

// GetTechnical implements provider.DataProvider. Precomputed indicators win
// over bars.
func (p *Provider) GetTechnical(ctx context.Context, symbol, timeframe string) (*core.TechnicalData, error) {
	symbol = strings.ToUpper(symbol)
	if !p.known(symbol) {
		return nil, core.ErrSymbolNotFound
	}
	if td, ok := p.fx.Technical[symbol]; ok {
		td.Symbol = symbol
		if td.Timeframe == "" {
			td.Timeframe = timeframe
		}
		return &td, nil
	}
	if bars, ok := p.fx.Bars[symbol]; ok && len(bars) > 0 {
		td := indicator.Snapshot(symbol, timeframe, bars)
		return &td, nil
	}
	return nil, core.ErrNoData
}

// GetNews implements provider.FeedProvider.
func (p *Provider) GetNews(ctx context.Context, symbol string, daysBack int) ([]core.NewsItem, error) {
	cutoff := p.now().AddDate(0, 0, -daysBack)
	var result []core.NewsItem
	for _, item := range p.fx.News {
		if item.PublishedAt.Before(cutoff) || !hasSymbol(item.Symbols, symbol) {
			continue
		}
		result = append(result, item)
	}
	return result, nil
}

// GetSocial implements provider.FeedProvider.
func (p *Provider) GetSocial(ctx context.Context, symbol string, daysBack int) ([]core.SocialPost, error) {
	cutoff := p.now().AddDate(0, 0, -daysBack)
	var result []core.SocialPost
	for _, post := range p.fx.Social {
		if post.CreatedAt.Before(cutoff) || !hasSymbol(post.Symbols, symbol) {
			continue
		}
		result = append(result, post)
	}
	return result, nil
}

func hasSymbol(symbols []string, symbol string) bool {
	for _, s := range symbols {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

func upperKeys[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}
