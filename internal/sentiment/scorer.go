// Package sentiment scores individual news and social items and aggregates
// them into a per-symbol sentiment summary.
package sentiment

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/newthinker/prism/internal/core"
)

const (
	mentionWeight   = 0.6
	densityWeight   = 0.4
	densitySaturate = 5.0
)

type term struct {
	phrase string
	weight float64
	re     *regexp.Regexp
}

// Scorer is a lexical polarity scorer over a financial vocabulary.
// It is safe for concurrent use.
type Scorer struct {
	polar   []term
	longest []term // polar, longest phrase first
	vocab   []term
	aliases map[string][]string
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithAliases registers company names that count as a direct mention of symbol.
func WithAliases(symbol string, names ...string) Option {
	return func(s *Scorer) {
		key := strings.ToUpper(symbol)
		s.aliases[key] = append(s.aliases[key], names...)
	}
}

// NewScorer creates a scorer with the built-in lexicon.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{aliases: make(map[string][]string)}

	for phrase, w := range positiveTerms {
		s.polar = append(s.polar, newTerm(phrase, w))
	}
	for phrase, w := range negativeTerms {
		s.polar = append(s.polar, newTerm(phrase, -w))
	}
	sort.Slice(s.polar, func(i, j int) bool { return s.polar[i].phrase < s.polar[j].phrase })
	s.longest = append([]term(nil), s.polar...)
	sort.SliceStable(s.longest, func(i, j int) bool { return len(s.longest[i].phrase) > len(s.longest[j].phrase) })

	s.vocab = append(s.vocab, s.polar...)
	for _, phrase := range neutralTerms {
		s.vocab = append(s.vocab, newTerm(phrase, 0))
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newTerm(phrase string, weight float64) term {
	return term{
		phrase: phrase,
		weight: weight,
		re:     regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`),
	}
}

// ScoreText returns a polarity in [-1, 1]. Every matched occurrence adds its
// signed weight and the sum is squashed with tanh, so more matches push the
// score toward the extremes without crossing them. Phrases match longest
// first; a term inside an already matched phrase does not count again.
func (s *Scorer) ScoreText(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	var claimed [][]int
	raw := 0.0
	for _, t := range s.longest {
		for _, loc := range t.re.FindAllStringIndex(text, -1) {
			if overlapsAny(claimed, loc) {
				continue
			}
			claimed = append(claimed, loc)
			raw += t.weight
		}
	}
	return core.Clamp(math.Tanh(raw), -1, 1)
}

func overlapsAny(spans [][]int, loc []int) bool {
	for _, sp := range spans {
		if loc[0] < sp[1] && sp[0] < loc[1] {
			return true
		}
	}
	return false
}

// Relevance returns how pertinent text is to symbol, in [0, 1].
func (s *Scorer) Relevance(text, symbol string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	score := 0.0
	if s.mentions(text, symbol) {
		score += mentionWeight
	}

	hits := 0
	for _, t := range s.vocab {
		if t.re.MatchString(text) {
			hits++
		}
	}
	score += densityWeight * math.Min(float64(hits)/densitySaturate, 1)

	return core.Clamp(score, 0, 1)
}

// ExtractKeywords returns the sorted vocabulary terms present in text.
func (s *Scorer) ExtractKeywords(text string) []string {
	keywords := []string{}
	if strings.TrimSpace(text) == "" {
		return keywords
	}
	for _, t := range s.vocab {
		if t.re.MatchString(text) {
			keywords = append(keywords, t.phrase)
		}
	}
	sort.Strings(keywords)
	return keywords
}

// mentions matches the upper-case ticker as a word, a $cashtag in any case,
// or a registered alias.
func (s *Scorer) mentions(text, symbol string) bool {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return false
	}
	upper := strings.ToUpper(symbol)
	quoted := regexp.QuoteMeta(upper)

	ticker := regexp.MustCompile(`(^|[^A-Za-z0-9])` + quoted + `($|[^A-Za-z0-9])`)
	if ticker.MatchString(text) {
		return true
	}
	cashtag := regexp.MustCompile(`(?i)\$` + quoted + `\b`)
	if cashtag.MatchString(text) {
		return true
	}

	lower := strings.ToLower(text)
	for _, alias := range s.aliases[upper] {
		if alias != "" && strings.Contains(lower, strings.ToLower(alias)) {
			return true
		}
	}
	return false
}

// ScoreNews fills in scores and keywords the upstream feed did not provide.
// The input slice is not modified.
func (s *Scorer) ScoreNews(items []core.NewsItem, symbol string) []core.NewsItem {
	out := make([]core.NewsItem, len(items))
	for i, item := range items {
		text := item.Text()
		if item.SentimentScore == nil {
			item.SentimentScore = core.Float(s.ScoreText(text))
		}
		if item.RelevanceScore == nil {
			item.RelevanceScore = core.Float(s.Relevance(text, symbol))
		}
		if item.Keywords == nil {
			item.Keywords = s.ExtractKeywords(text)
		}
		out[i] = item
	}
	return out
}

// ScoreSocial is ScoreNews for social posts.
func (s *Scorer) ScoreSocial(posts []core.SocialPost, symbol string) []core.SocialPost {
	out := make([]core.SocialPost, len(posts))
	for i, post := range posts {
		if post.SentimentScore == nil {
			post.SentimentScore = core.Float(s.ScoreText(post.Content))
		}
		if post.RelevanceScore == nil {
			post.RelevanceScore = core.Float(s.Relevance(post.Content, symbol))
		}
		if post.Keywords == nil {
			post.Keywords = s.ExtractKeywords(post.Content)
		}
		out[i] = post
	}
	return out
}
