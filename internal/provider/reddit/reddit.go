// Package reddit implements a social source over subreddit search listings.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/newthinker/prism/internal/core"
)

const defaultBaseURL = "https://www.reddit.com"

// Config configures the Reddit source.
type Config struct {
	BaseURL           string
	Subreddits        []string
	UserAgent         string
	Limit             int
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Source searches subreddits for posts mentioning a symbol.
type Source struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a Reddit source.
func New(cfg Config, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if len(cfg.Subreddits) == 0 {
		cfg.Subreddits = []string{"stocks", "investing", "wallstreetbets"}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "prism/1.0"
	}
	if cfg.Limit <= 0 || cfg.Limit > 100 {
		cfg.Limit = 25
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Source{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		now:     time.Now,
		logger:  logger,
	}
}

func (s *Source) Name() string { return "reddit" }

// FetchPosts implements provider.SocialSource. A subreddit that fails is
// skipped; the call fails only when every subreddit does. Rate limiting
// (429) ends the scan early with whatever was collected.
func (s *Source) FetchPosts(ctx context.Context, symbol string, daysBack int) ([]core.SocialPost, error) {
	cutoff := s.now().AddDate(0, 0, -daysBack)
	seen := make(map[string]bool)
	var posts []core.SocialPost
	var failures int
	var lastErr error

	for _, sub := range s.cfg.Subreddits {
		listing, err := s.search(ctx, sub, symbol, daysBack)
		if errors.Is(err, errRateLimited) {
			s.logger.Warn("reddit rate limit reached", zap.String("subreddit", sub))
			break
		}
		if err != nil {
			failures++
			lastErr = err
			s.logger.Warn("reddit search failed", zap.String("subreddit", sub), zap.Error(err))
			continue
		}

		for _, child := range listing.Data.Children {
			p := child.Data
			created := time.Unix(int64(p.CreatedUTC), 0).UTC()
			if seen[p.ID] || created.Before(cutoff) || !mentionsSymbol(p, symbol) {
				continue
			}
			seen[p.ID] = true
			posts = append(posts, toPost(p, symbol, created, s.cfg.BaseURL))
		}
	}

	if failures > 0 && failures == len(s.cfg.Subreddits) {
		return nil, core.WrapError(core.ErrProviderFailed, lastErr)
	}

	s.logger.Debug("reddit posts fetched",
		zap.String("symbol", symbol),
		zap.Int("subreddits", len(s.cfg.Subreddits)),
		zap.Int("matching", len(posts)),
	)
	return posts, nil
}

var errRateLimited = errors.New("reddit: rate limited")

func (s *Source) search(ctx context.Context, subreddit, symbol string, daysBack int) (*listingResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", symbol)
	q.Set("restrict_sr", "1")
	q.Set("sort", "new")
	q.Set("t", timeWindow(daysBack))
	q.Set("limit", fmt.Sprint(s.cfg.Limit))
	u := fmt.Sprintf("%s/r/%s/search.json?%s", s.cfg.BaseURL, url.PathEscape(subreddit), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("r/%s returned status %d", subreddit, resp.StatusCode)
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decoding r/%s listing: %w", subreddit, err)
	}
	return &listing, nil
}

// timeWindow maps a lookback to Reddit's coarse search windows.
func timeWindow(daysBack int) string {
	switch {
	case daysBack <= 1:
		return "day"
	case daysBack <= 7:
		return "week"
	case daysBack <= 31:
		return "month"
	}
	return "year"
}

// mentionsSymbol matches the bare ticker as a word or its cashtag.
func mentionsSymbol(p postData, symbol string) bool {
	sym := strings.ToLower(symbol)
	text := strings.ToLower(p.Title + " " + p.Selftext)
	if strings.Contains(text, "$"+sym) {
		return true
	}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.')
	}) {
		if strings.TrimSuffix(w, ".") == sym {
			return true
		}
	}
	return false
}

func toPost(p postData, symbol string, created time.Time, baseURL string) core.SocialPost {
	content := p.Title
	if body := strings.TrimSpace(p.Selftext); body != "" {
		content += "\n" + body
	}
	post := core.SocialPost{
		ID:        p.ID,
		Platform:  core.SourceReddit,
		Author:    p.Author,
		Content:   content,
		CreatedAt: created,
		Symbols:   []string{strings.ToUpper(symbol)},
		Score:     p.Score,
		Comments:  p.NumComments,
	}
	if p.Permalink != "" {
		post.URL = strings.TrimRight(baseURL, "/") + p.Permalink
	}
	return post
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Data postData `json:"data"`
		} `json:"children"`
		After string `json:"after"`
	} `json:"data"`
}

type postData struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}
