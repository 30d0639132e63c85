package explain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/llm"
	"github.com/newthinker/prism/internal/session"
)

type fakeLLM struct {
	reply string
	err   error
	got   llm.ChatRequest
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.reply, Model: "fake-1"}, nil
}

func sampleResult() *core.AnalysisResult {
	return &core.AnalysisResult{
		Symbol:           "AAPL",
		Recommendation:   core.RecommendationBuy,
		Confidence:       0.72,
		OverallScore:     68.5,
		FundamentalScore: core.Float(74),
		RiskLevel:        core.RiskModerate,
		Strengths:        []string{"High return on equity"},
		Risks:            []string{"Elevated valuation"},
		PriceTargets: map[core.Horizon]core.PriceTarget{
			core.HorizonLong: {Horizon: core.HorizonLong, Price: 230.25, ExpectedReturn: 0.21},
		},
		Sentiment: &core.SentimentData{
			OverallSentiment: 0.35,
			TrendDirection:   core.TrendRising,
			NewsCount:        8,
			SocialPostsCount: 4,
		},
		Conflict: &core.SentimentConflict{
			Type:                 core.ConflictBullishSentimentBearishFundamentals,
			Severity:             0.4,
			SentimentValue:       0.35,
			FundamentalsPolarity: -0.5,
		},
		AnalysisType: core.AnalysisComprehensive,
		Coverage:     core.DataCoverage{Requested: 4, Succeeded: 3, Unavailable: []string{"technical"}},
		Timestamp:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestTemplate(t *testing.T) {
	exp := Template(*sampleResult())

	assert.Equal(t, SourceTemplate, exp.Source)
	assert.Equal(t, "AAPL BUY (score 68.5, 72% confidence).", exp.Summary)
	assert.Equal(t, "Overall score 68.5 of 100, fundamental 74", exp.KeyPoints[0])
	assert.Contains(t, exp.KeyPoints, "High return on equity")
	assert.Contains(t, exp.KeyPoints, "Sentiment is positive (+0.35, rising) across 12 items")
	assert.Contains(t, exp.KeyPoints, "Long-horizon target 230.25 (+21.0%)")
	assert.Contains(t, exp.Caveats, "Data unavailable: technical")
	assert.Equal(t, "Not investment advice.", exp.Caveats[len(exp.Caveats)-1])

	// Deterministic.
	assert.Equal(t, exp, Template(*sampleResult()))
}

func TestTemplate_LowConfidence(t *testing.T) {
	r := core.AnalysisResult{Symbol: "X", Recommendation: core.RecommendationHold, Confidence: 0.2}
	exp := Template(r)
	assert.Contains(t, exp.Caveats, "Low confidence (20%)")
}

func TestExplain_WithoutLLM(t *testing.T) {
	e := New(nil, Config{}, nil)
	sess := session.Session{ID: "s1", Result: sampleResult()}

	exp, err := e.Explain(context.Background(), sess, "")
	require.NoError(t, err)
	assert.Equal(t, SourceTemplate, exp.Source)
	assert.False(t, e.HasLLM())
}

func TestExplain_NoResult(t *testing.T) {
	e := New(nil, Config{}, nil)
	_, err := e.Explain(context.Background(), session.Session{ID: "s1"}, "why?")
	assert.True(t, errors.Is(err, core.ErrResultNotFound))
}

func TestExplain_WithLLM(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantSummary string
		wantPoints  int
	}{
		{
			name:        "json",
			reply:       `{"summary":"Solid buy.","key_points":["ROE 31%"],"caveats":["Valuation"]}`,
			wantSummary: "Solid buy.",
			wantPoints:  1,
		},
		{
			name:        "fenced json",
			reply:       "```json\n{\"summary\":\"Fenced.\",\"key_points\":[\"a\",\"b\"]}\n```",
			wantSummary: "Fenced.",
			wantPoints:  2,
		},
		{
			name:        "plain text",
			reply:       "The stock looks fine.",
			wantSummary: "The stock looks fine.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeLLM{reply: tt.reply}
			e := New(fake, Config{HistoryTurns: 2}, nil)
			sess := session.Session{
				ID:     "s1",
				Result: sampleResult(),
				Messages: []llm.Message{
					{Role: llm.RoleUser, Content: "first"},
					{Role: llm.RoleAssistant, Content: "answer one"},
					{Role: llm.RoleUser, Content: "second"},
					{Role: llm.RoleAssistant, Content: "answer two"},
				},
			}

			exp, err := e.Explain(context.Background(), sess, "Why buy?")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSummary, exp.Summary)
			assert.Len(t, exp.KeyPoints, tt.wantPoints)
			assert.Equal(t, SourceLLM, exp.Source)
			assert.Equal(t, "fake-1", exp.Model)
			assert.Equal(t, "AAPL", exp.Symbol)

			// Two history turns plus the question.
			require.Len(t, fake.got.Messages, 3)
			assert.Equal(t, "second", fake.got.Messages[0].Content)
			assert.Equal(t, "Why buy?", fake.got.Messages[2].Content)
			assert.True(t, fake.got.JSONMode)
			assert.Contains(t, fake.got.SystemPrompt, "## Symbol: AAPL")
		})
	}
}

func TestExplain_LLMError(t *testing.T) {
	fake := &fakeLLM{err: core.WrapError(core.ErrLLMFailed, errors.New("boom"))}
	e := New(fake, Config{}, nil)

	_, err := e.Explain(context.Background(), session.Session{ID: "s1", Result: sampleResult()}, "")
	assert.True(t, errors.Is(err, core.ErrLLMFailed))
	assert.Equal(t, DefaultQuestion, fake.got.Messages[0].Content)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(*sampleResult())
	for _, want := range []string{
		"Recommendation: BUY",
		"Confidence: 72%",
		"Unavailable: technical",
		"Bullish sentiment (0.35) contradicts weak fundamentals (-0.50)",
		"- long: 230.25 (+21.0%",
		"## Risks:\n- Elevated valuation",
	} {
		assert.True(t, strings.Contains(p, want), "prompt missing %q", want)
	}
	assert.NotContains(t, p, "Technical score")
}

func TestExplanation_Text(t *testing.T) {
	exp := Explanation{Summary: "S", KeyPoints: []string{"a"}, Caveats: []string{"c"}}
	assert.Equal(t, "S\n- a\n! c", exp.Text())
}
