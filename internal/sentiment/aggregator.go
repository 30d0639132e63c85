package sentiment

import (
	"math"
	"sort"
	"time"

	"github.com/newthinker/prism/internal/core"
)

// AggregatorConfig holds the tunable weights of the aggregator.
type AggregatorConfig struct {
	HalfLife        time.Duration // recency half-life
	NewsWeight      float64       // share of overall when both sources present
	TrendThreshold  float64       // recent-vs-older delta that counts as a trend
	TopKeywordLimit int
}

// DefaultAggregatorConfig returns the production weights.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		HalfLife:        24 * time.Hour,
		NewsWeight:      0.6,
		TrendThreshold:  0.1,
		TopKeywordLimit: 10,
	}
}

// Aggregator combines scored items into a SentimentData summary.
// It keeps no state between calls.
type Aggregator struct {
	scorer *Scorer
	cfg    AggregatorConfig
}

// NewAggregator creates an aggregator. Items without an upstream score are
// scored with scorer.
func NewAggregator(scorer *Scorer, cfg AggregatorConfig) *Aggregator {
	if scorer == nil {
		scorer = NewScorer()
	}
	def := DefaultAggregatorConfig()
	if cfg.HalfLife <= 0 {
		cfg.HalfLife = def.HalfLife
	}
	if cfg.NewsWeight <= 0 || cfg.NewsWeight > 1 {
		cfg.NewsWeight = def.NewsWeight
	}
	if cfg.TrendThreshold <= 0 {
		cfg.TrendThreshold = def.TrendThreshold
	}
	if cfg.TopKeywordLimit <= 0 {
		cfg.TopKeywordLimit = def.TopKeywordLimit
	}
	return &Aggregator{scorer: scorer, cfg: cfg}
}

// Scorer returns the item scorer used by the aggregator.
func (a *Aggregator) Scorer() *Scorer {
	return a.scorer
}

type observation struct {
	score  float64
	weight float64
	at     time.Time
}

// Aggregate summarizes news and social items for symbol as of now.
// Empty inputs produce a neutral summary with zero confidence.
func (a *Aggregator) Aggregate(symbol string, news []core.NewsItem, social []core.SocialPost, now time.Time) core.SentimentData {
	news = a.scorer.ScoreNews(news, symbol)
	social = a.scorer.ScoreSocial(social, symbol)

	result := core.SentimentData{
		Symbol:           symbol,
		TrendDirection:   core.TrendStable,
		NewsCount:        len(news),
		SocialPostsCount: len(social),
		Sources:          []core.SentimentSource{},
		ComputedAt:       now,
	}

	newsObs := make([]observation, 0, len(news))
	for _, n := range news {
		w := a.recency(n.PublishedAt, now) * relevanceWeight(n.RelevanceScore)
		newsObs = append(newsObs, observation{score: clampScore(n.SentimentScore), weight: w, at: n.PublishedAt})
	}

	socialObs := make([]observation, 0, len(social))
	sources := make(map[core.SentimentSource]struct{})
	for _, p := range social {
		w := a.recency(p.CreatedAt, now) * relevanceWeight(p.RelevanceScore) * engagementWeight(p.Score, p.Comments)
		socialObs = append(socialObs, observation{score: clampScore(p.SentimentScore), weight: w, at: p.CreatedAt})
		platform := p.Platform
		if platform == "" {
			platform = core.SourceReddit
		}
		sources[platform] = struct{}{}
	}
	if len(news) > 0 {
		sources[core.SourceNews] = struct{}{}
	}

	for src := range sources {
		result.Sources = append(result.Sources, src)
	}
	sort.Slice(result.Sources, func(i, j int) bool { return result.Sources[i] < result.Sources[j] })

	if len(newsObs)+len(socialObs) == 0 {
		return result
	}

	result.NewsSentiment = weightedMean(newsObs)
	result.SocialSentiment = weightedMean(socialObs)

	switch {
	case len(newsObs) > 0 && len(socialObs) > 0:
		result.OverallSentiment = a.cfg.NewsWeight*result.NewsSentiment + (1-a.cfg.NewsWeight)*result.SocialSentiment
	case len(newsObs) > 0:
		result.OverallSentiment = result.NewsSentiment
	default:
		result.OverallSentiment = result.SocialSentiment
	}
	result.OverallSentiment = core.Clamp(result.OverallSentiment, -1, 1)

	all := append(append([]observation{}, newsObs...), socialObs...)
	scores := make([]float64, len(all))
	for i, o := range all {
		scores[i] = o.score
	}

	result.Volatility = stddev(scores)
	result.TrendDirection, result.TrendStrength = a.trend(all)
	result.ConfidenceScore = confidence(len(all), result.Volatility)
	result.TopKeywords = topKeywords(news, social, a.cfg.TopKeywordLimit)

	return result
}

// recency halves an item's weight every HalfLife. Future timestamps count as now.
func (a *Aggregator) recency(at, now time.Time) float64 {
	age := now.Sub(at)
	if age < 0 {
		age = 0
	}
	return math.Exp(-math.Ln2 * age.Hours() / a.cfg.HalfLife.Hours())
}

// trend compares the plain mean of the recent half against the older half.
func (a *Aggregator) trend(obs []observation) (core.TrendDirection, float64) {
	if len(obs) < 2 {
		return core.TrendStable, 0
	}

	sorted := append([]observation{}, obs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].at.Before(sorted[j].at) })

	mid := len(sorted) / 2
	older := mean(sorted[:mid])
	recent := mean(sorted[mid:])
	diff := recent - older
	strength := core.Clamp(math.Abs(diff), 0, 1)

	switch {
	case diff > a.cfg.TrendThreshold:
		return core.TrendRising, strength
	case diff < -a.cfg.TrendThreshold:
		return core.TrendFalling, strength
	default:
		return core.TrendStable, strength
	}
}

// confidence grows with sample size and shrinks with disagreement.
func confidence(n int, volatility float64) float64 {
	if n == 0 {
		return 0
	}
	size := 1 - math.Exp(-float64(n)/5)
	agreement := 1 - math.Min(volatility, 1)
	return core.Clamp(size*(0.5+0.5*agreement), 0, 1)
}

// engagementWeight is monotonic in both upvotes and comment count.
func engagementWeight(score, comments int) float64 {
	if score < 0 {
		score = 0
	}
	if comments < 0 {
		comments = 0
	}
	return 1 + math.Log1p(float64(score)) + 0.5*math.Log1p(float64(comments))
}

func relevanceWeight(r *float64) float64 {
	if r == nil || math.IsNaN(*r) {
		return 1
	}
	return 0.5 + 0.5*core.Clamp(*r, 0, 1)
}

func clampScore(s *float64) float64 {
	if s == nil || math.IsNaN(*s) {
		return 0
	}
	return core.Clamp(*s, -1, 1)
}

func weightedMean(obs []observation) float64 {
	sum, total := 0.0, 0.0
	for _, o := range obs {
		sum += o.score * o.weight
		total += o.weight
	}
	if total == 0 {
		return 0
	}
	return core.Clamp(sum/total, -1, 1)
}

func mean(obs []observation) float64 {
	if len(obs) == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range obs {
		sum += o.score
	}
	return sum / float64(len(obs))
}

func stddev(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	m := 0.0
	for _, v := range values {
		m += v
	}
	m /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func topKeywords(news []core.NewsItem, social []core.SocialPost, limit int) []string {
	counts := make(map[string]int)
	for _, n := range news {
		for _, k := range n.Keywords {
			counts[k]++
		}
	}
	for _, p := range social {
		for _, k := range p.Keywords {
			counts[k]++
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
