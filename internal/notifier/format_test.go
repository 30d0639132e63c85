package notifier

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/newthinker/prism/internal/core"
)

func sampleResult() core.AnalysisResult {
	return core.AnalysisResult{
		Symbol:         "AAPL",
		Recommendation: core.RecommendationBuy,
		Confidence:     0.72,
		OverallScore:   78.75,
		RiskLevel:      core.RiskModerate,
		Strengths:      []string{"ROE above 15%"},
		Risks:          []string{"P/E above 40"},
		PriceTargets: map[core.Horizon]core.PriceTarget{
			core.HorizonLong: {Horizon: core.HorizonLong, Price: 1398.5, ExpectedReturn: 0.398},
		},
		Sentiment: &core.SentimentData{OverallSentiment: 0.35, TrendDirection: core.TrendRising, NewsCount: 1200, SocialPostsCount: 34},
		Conflict: &core.SentimentConflict{
			Type:     core.ConflictBullishSentimentBearishFundamentals,
			Severity: 0.61,
		},
		Timestamp: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
	}
}

func TestHeadline(t *testing.T) {
	assert.Equal(t, "AAPL BUY (score 78.75, 72% confidence)", Headline(sampleResult()))
}

func TestSummary(t *testing.T) {
	s := Summary(sampleResult())

	for _, want := range []string{
		"Risk: MODERATE",
		"Sentiment: +0.35 (rising, 1,234 items)",
		"Conflict: bullish sentiment bearish fundamentals (severity 0.61)",
		"Target long: 1,398.5 (+39.8%)",
		"  - ROE above 15%",
		"  - P/E above 40",
		"Analyzed 2026-03-10 14:30 UTC",
	} {
		assert.Contains(t, s, want)
	}
	assert.False(t, strings.HasSuffix(s, "\n"))
}

func TestSummary_Minimal(t *testing.T) {
	s := Summary(core.AnalysisResult{Symbol: "X", Recommendation: core.RecommendationHold, RiskLevel: core.RiskLow})
	assert.NotContains(t, s, "Sentiment")
	assert.NotContains(t, s, "Strengths")
	assert.NotContains(t, s, "Analyzed")
}

func TestBatchSummary(t *testing.T) {
	low := core.AnalysisResult{Symbol: "LOW", Recommendation: core.RecommendationSell, OverallScore: 20}
	high := sampleResult()

	s := BatchSummary([]core.AnalysisResult{low, high})
	lines := strings.Split(s, "\n")
	assert.Equal(t, "2 analyses", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "- AAPL"))
	assert.True(t, strings.HasPrefix(lines[2], "- LOW"))

	assert.True(t, strings.HasPrefix(BatchSummary([]core.AnalysisResult{low}), "1 analysis"))
}
