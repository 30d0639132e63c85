// Package explain turns a finished AnalysisResult into prose, either through
// an LLM or from a fixed template.
package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/conflict"
	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/llm"
	"github.com/newthinker/prism/internal/notifier"
	"github.com/newthinker/prism/internal/session"
)

// Explanation sources.
const (
	SourceLLM      = "llm"
	SourceTemplate = "template"
)

// DefaultQuestion is asked when the caller supplies none.
const DefaultQuestion = "Explain this assessment."

// Explanation is the structured reply.
type Explanation struct {
	Symbol    string   `json:"symbol"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Caveats   []string `json:"caveats"`
	Source    string   `json:"source"`
	Model     string   `json:"model,omitempty"`
}

// Text flattens the explanation for storage as a session message.
func (e Explanation) Text() string {
	var sb strings.Builder
	sb.WriteString(e.Summary)
	for _, p := range e.KeyPoints {
		sb.WriteString("\n- ")
		sb.WriteString(p)
	}
	for _, c := range e.Caveats {
		sb.WriteString("\n! ")
		sb.WriteString(c)
	}
	return sb.String()
}

// Config tunes LLM calls.
type Config struct {
	Timeout      time.Duration
	HistoryTurns int
	MaxTokens    int
	Temperature  float64
}

// Explainer builds explanations. A nil provider selects the template.
type Explainer struct {
	llm    llm.Provider
	cfg    Config
	logger *zap.Logger
}

// New creates an explainer.
func New(provider llm.Provider, cfg Config, logger *zap.Logger) *Explainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 10
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = llm.DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.3
	}
	return &Explainer{llm: provider, cfg: cfg, logger: logger}
}

// HasLLM reports whether a provider is configured.
func (e *Explainer) HasLLM() bool {
	return e.llm != nil
}

// Explain answers question about the session's result, using the session
// history as prior turns. The session itself is not modified.
func (e *Explainer) Explain(ctx context.Context, sess session.Session, question string) (*Explanation, error) {
	if sess.Result == nil {
		return nil, core.WrapError(core.ErrResultNotFound, fmt.Errorf("session %s has no analysis attached", sess.ID))
	}
	if strings.TrimSpace(question) == "" {
		question = DefaultQuestion
	}
	if e.llm == nil {
		exp := Template(*sess.Result)
		return &exp, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	msgs := append([]llm.Message(nil), sess.History(e.cfg.HistoryTurns)...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})

	resp, err := e.llm.Chat(ctx, llm.ChatRequest{
		SystemPrompt: systemPrompt + "\n\n" + BuildPrompt(*sess.Result),
		Messages:     msgs,
		MaxTokens:    e.cfg.MaxTokens,
		Temperature:  e.cfg.Temperature,
		JSONMode:     true,
	})
	if err != nil {
		e.logger.Warn("explanation failed",
			zap.String("symbol", sess.Result.Symbol),
			zap.String("provider", e.llm.Name()),
			zap.Error(err),
		)
		return nil, err
	}

	exp := parseResponse(resp.Content)
	exp.Symbol = sess.Result.Symbol
	exp.Source = SourceLLM
	exp.Model = resp.Model
	return &exp, nil
}

const systemPrompt = `You explain equity assessments produced by a quantitative scoring engine.
Use only the data given below. Do not invent prices, news or ratios.
Reply as JSON with keys: summary (string), key_points (array of strings), caveats (array of strings).
This is not investment advice; say so in caveats when recommending action.`

// BuildPrompt renders the result as the data block given to the model.
func BuildPrompt(r core.AnalysisResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Symbol: %s\n\n", r.Symbol)
	sb.WriteString("## Assessment:\n")
	fmt.Fprintf(&sb, "- Recommendation: %s\n", r.Recommendation)
	fmt.Fprintf(&sb, "- Overall score: %.2f / 100\n", r.OverallScore)
	fmt.Fprintf(&sb, "- Confidence: %.0f%%\n", r.Confidence*100)
	if r.FundamentalScore != nil {
		fmt.Fprintf(&sb, "- Fundamental score: %.2f\n", *r.FundamentalScore)
	}
	if r.TechnicalScore != nil {
		fmt.Fprintf(&sb, "- Technical score: %.2f\n", *r.TechnicalScore)
	}
	fmt.Fprintf(&sb, "- Risk level: %s\n", r.RiskLevel)
	fmt.Fprintf(&sb, "- Mode: %s, data coverage %d/%d\n", r.AnalysisType, r.Coverage.Succeeded, r.Coverage.Requested)
	if len(r.Coverage.Unavailable) > 0 {
		fmt.Fprintf(&sb, "- Unavailable: %s\n", strings.Join(r.Coverage.Unavailable, ", "))
	}
	sb.WriteString("\n")

	if s := r.Sentiment; s != nil {
		sb.WriteString("## Sentiment:\n")
		fmt.Fprintf(&sb, "- Overall %+.2f (news %+.2f, social %+.2f)\n", s.OverallSentiment, s.NewsSentiment, s.SocialSentiment)
		fmt.Fprintf(&sb, "- Trend %s (strength %.2f), confidence %.2f\n", s.TrendDirection, s.TrendStrength, s.ConfidenceScore)
		fmt.Fprintf(&sb, "- %d news items, %d social posts\n", s.NewsCount, s.SocialPostsCount)
		if len(s.TopKeywords) > 0 {
			fmt.Fprintf(&sb, "- Keywords: %s\n", strings.Join(s.TopKeywords, ", "))
		}
		sb.WriteString("\n")
	}
	if r.Conflict != nil {
		fmt.Fprintf(&sb, "## Conflict:\n- %s (severity %.2f)\n\n", conflict.Describe(r.Conflict), r.Conflict.Severity)
	}

	if len(r.PriceTargets) > 0 {
		sb.WriteString("## Price Targets:\n")
		for _, h := range core.Horizons {
			if pt, ok := r.PriceTargets[h]; ok {
				fmt.Fprintf(&sb, "- %s: %.2f (%+.1f%%, confidence %.2f) %s\n", h, pt.Price, pt.ExpectedReturn*100, pt.Confidence, pt.Rationale)
			}
		}
		sb.WriteString("\n")
	}

	writeSection(&sb, "Strengths", r.Strengths)
	writeSection(&sb, "Risks", r.Risks)
	return strings.TrimRight(sb.String(), "\n")
}

func writeSection(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "## %s:\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
	sb.WriteString("\n")
}

// parseResponse decodes the model's JSON, falling back to the raw text as
// the summary.
func parseResponse(content string) Explanation {
	text := strings.TrimSpace(content)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var exp Explanation
	if err := json.Unmarshal([]byte(text), &exp); err != nil || exp.Summary == "" {
		return Explanation{Summary: strings.TrimSpace(content)}
	}
	return exp
}

// Template explains a result without a model. Output depends only on r.
func Template(r core.AnalysisResult) Explanation {
	exp := Explanation{
		Symbol:  r.Symbol,
		Summary: notifier.Headline(r) + ".",
		Source:  SourceTemplate,
	}

	parts := []string{fmt.Sprintf("Overall score %s of 100", humanize.FtoaWithDigits(r.OverallScore, 2))}
	if r.FundamentalScore != nil {
		parts = append(parts, "fundamental "+humanize.FtoaWithDigits(*r.FundamentalScore, 1))
	}
	if r.TechnicalScore != nil {
		parts = append(parts, "technical "+humanize.FtoaWithDigits(*r.TechnicalScore, 1))
	}
	exp.KeyPoints = append(exp.KeyPoints, strings.Join(parts, ", "))
	exp.KeyPoints = append(exp.KeyPoints, r.Strengths...)

	if s := r.Sentiment; s != nil && s.NewsCount+s.SocialPostsCount > 0 {
		exp.KeyPoints = append(exp.KeyPoints, fmt.Sprintf("Sentiment is %s (%+.2f, %s) across %s items",
			tone(s.OverallSentiment), s.OverallSentiment, s.TrendDirection,
			humanize.Comma(int64(s.NewsCount+s.SocialPostsCount))))
	}
	if pt, ok := r.PriceTargets[core.HorizonLong]; ok {
		exp.KeyPoints = append(exp.KeyPoints, fmt.Sprintf("Long-horizon target %s (%+.1f%%)",
			humanize.CommafWithDigits(pt.Price, 2), pt.ExpectedReturn*100))
	}

	exp.Caveats = append(exp.Caveats, r.Risks...)
	if r.Conflict != nil && !containsString(r.Risks, conflict.Describe(r.Conflict)) {
		exp.Caveats = append(exp.Caveats, conflict.Describe(r.Conflict))
	}
	if len(r.Coverage.Unavailable) > 0 {
		exp.Caveats = append(exp.Caveats, "Data unavailable: "+strings.Join(r.Coverage.Unavailable, ", "))
	}
	if r.Confidence < 0.5 {
		exp.Caveats = append(exp.Caveats, fmt.Sprintf("Low confidence (%.0f%%)", math.Round(r.Confidence*100)))
	}
	exp.Caveats = append(exp.Caveats, "Not investment advice.")
	return exp
}

func tone(v float64) string {
	switch {
	case v >= 0.2:
		return "positive"
	case v <= -0.2:
		return "negative"
	}
	return "neutral"
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
