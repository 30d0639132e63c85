// Package rss implements a news source over per-symbol RSS or Atom search
// feeds.
package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/core"
)

// DefaultURLTemplate is Yahoo Finance's headline feed.
const DefaultURLTemplate = "https://feeds.finance.yahoo.com/rss/2.0/headline?s={symbol}&region=US&lang=en-US"

// Config configures a feed source. URLTemplate must contain {symbol}.
type Config struct {
	Name        string
	URLTemplate string
	Timeout     time.Duration
	MaxItems    int
}

// Source fetches and normalizes feed items into news items.
type Source struct {
	cfg    Config
	parser *gofeed.Parser
	now    func() time.Time
	logger *zap.Logger
}

// New creates a feed source.
func New(cfg Config, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "rss"
	}
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultURLTemplate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 50
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: cfg.Timeout}
	parser.UserAgent = "prism/1.0"

	return &Source{cfg: cfg, parser: parser, now: time.Now, logger: logger}
}

func (s *Source) Name() string { return s.cfg.Name }

// FetchNews implements provider.NewsSource. Items older than daysBack and
// items without a title are dropped.
func (s *Source) FetchNews(ctx context.Context, symbol string, daysBack int) ([]core.NewsItem, error) {
	feedURL := strings.ReplaceAll(s.cfg.URLTemplate, "{symbol}", url.QueryEscape(symbol))

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, core.WrapError(core.ErrSymbolNotFound, err)
		}
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("%s: %w", s.cfg.Name, err))
	}

	cutoff := s.now().AddDate(0, 0, -daysBack)
	items := make([]core.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if len(items) >= s.cfg.MaxItems {
			break
		}
		title := stripHTML(it.Title)
		if title == "" {
			continue
		}
		published := s.now()
		if it.PublishedParsed != nil {
			published = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			published = *it.UpdatedParsed
		}
		if published.Before(cutoff) {
			continue
		}

		body := it.Description
		if body == "" {
			body = it.Content
		}
		items = append(items, core.NewsItem{
			ID:          itemID(it),
			Source:      s.cfg.Name,
			Title:       title,
			Content:     stripHTML(body),
			URL:         it.Link,
			PublishedAt: published.UTC(),
			Symbols:     []string{strings.ToUpper(symbol)},
		})
	}

	s.logger.Debug("feed fetched",
		zap.String("source", s.cfg.Name),
		zap.String("symbol", symbol),
		zap.Int("items", len(feed.Items)),
		zap.Int("kept", len(items)),
	)
	return items, nil
}

// itemID derives a stable identifier so the same article fetched twice
// keeps its ID.
func itemID(it *gofeed.Item) string {
	key := it.GUID
	if key == "" {
		key = it.Link
	}
	if key == "" {
		key = it.Title
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// stripHTML returns the visible text of an HTML fragment with whitespace
// collapsed.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
