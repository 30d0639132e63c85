package core

import "time"

// SentimentSource identifies where a scored item came from.
type SentimentSource string

const (
	SourceNews       SentimentSource = "NEWS"
	SourceReddit     SentimentSource = "REDDIT"
	SourceTwitter    SentimentSource = "TWITTER"
	SourceStockTwits SentimentSource = "STOCKTWITS"
)

// TrendDirection of sentiment over the lookback window.
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendStable  TrendDirection = "stable"
)

// NewsItem is a news article. A nil SentimentScore means the upstream feed
// did not score it.
type NewsItem struct {
	ID             string    `json:"id"`
	Source         string    `json:"source"`
	Title          string    `json:"title"`
	Content        string    `json:"content,omitempty"`
	URL            string    `json:"url,omitempty"`
	PublishedAt    time.Time `json:"published_at"`
	SentimentScore *float64  `json:"sentiment_score,omitempty"`
	RelevanceScore *float64  `json:"relevance_score,omitempty"`
	Symbols        []string  `json:"symbols,omitempty"`
	Keywords       []string  `json:"keywords,omitempty"`
}

// Text returns the scoreable text of the article.
func (n NewsItem) Text() string {
	if n.Content == "" {
		return n.Title
	}
	return n.Title + " " + n.Content
}

// SocialPost is a social media post with engagement metadata.
type SocialPost struct {
	ID             string          `json:"id"`
	Platform       SentimentSource `json:"platform"`
	Author         string          `json:"author,omitempty"`
	Content        string          `json:"content"`
	URL            string          `json:"url,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	SentimentScore *float64        `json:"sentiment_score,omitempty"`
	RelevanceScore *float64        `json:"relevance_score,omitempty"`
	Symbols        []string        `json:"symbols,omitempty"`
	Keywords       []string        `json:"keywords,omitempty"`
	Score          int             `json:"score"`
	Comments       int             `json:"comments"`
}

// SentimentData summarizes scored items for one symbol.
type SentimentData struct {
	Symbol           string            `json:"symbol"`
	OverallSentiment float64           `json:"overall_sentiment"`
	NewsSentiment    float64           `json:"news_sentiment"`
	SocialSentiment  float64           `json:"social_sentiment"`
	TrendDirection   TrendDirection    `json:"trend_direction"`
	TrendStrength    float64           `json:"trend_strength"`
	ConfidenceScore  float64           `json:"confidence_score"`
	Volatility       float64           `json:"volatility"`
	NewsCount        int               `json:"news_count"`
	SocialPostsCount int               `json:"social_posts_count"`
	Sources          []SentimentSource `json:"sources"`
	TopKeywords      []string          `json:"top_keywords,omitempty"`
	ComputedAt       time.Time         `json:"computed_at"`
}

// ItemCount is the number of items that contributed.
func (s SentimentData) ItemCount() int {
	return s.NewsCount + s.SocialPostsCount
}

// HasSource reports whether src contributed to the summary.
func (s SentimentData) HasSource(src SentimentSource) bool {
	for _, v := range s.Sources {
		if v == src {
			return true
		}
	}
	return false
}

// ConflictType names the direction of a sentiment/fundamentals divergence.
type ConflictType string

const (
	ConflictBullishSentimentBearishFundamentals ConflictType = "bullish_sentiment_bearish_fundamentals"
	ConflictBearishSentimentBullishFundamentals ConflictType = "bearish_sentiment_bullish_fundamentals"
)

// SentimentConflict flags material disagreement between sentiment and
// fundamentals for one evaluation.
type SentimentConflict struct {
	Symbol               string       `json:"symbol"`
	Type                 ConflictType `json:"conflict_type"`
	Severity             float64      `json:"conflict_severity"`
	SentimentValue       float64      `json:"sentiment_value"`
	FundamentalsPolarity float64      `json:"fundamentals_polarity"`
	DetectedAt           time.Time    `json:"detected_at"`
}
