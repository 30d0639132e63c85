// Package analysis merges fundamental, technical and sentiment signals into
// a single AnalysisResult, and orchestrates the concurrent provider fetches
// that feed it.
package analysis

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/newthinker/prism/internal/conflict"
	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/fundamental"
)

// Thresholds are inclusive lower bounds on the overall score.
type Thresholds struct {
	StrongBuy float64
	Buy       float64
	Hold      float64
	Sell      float64
}

// Config tunes the engine. Zero values fall back to DefaultConfig.
type Config struct {
	FundamentalWeight      float64
	TechnicalWeight        float64
	SentimentWeight        float64
	MinSentimentConfidence float64
	ConflictThreshold      float64
	Thresholds             Thresholds
}

// DefaultConfig returns the production weights and thresholds.
func DefaultConfig() Config {
	return Config{
		FundamentalWeight:      0.6,
		TechnicalWeight:        0.4,
		SentimentWeight:        0.15,
		MinSentimentConfidence: 0.3,
		ConflictThreshold:      conflict.DefaultThreshold,
		Thresholds: Thresholds{
			StrongBuy: 80,
			Buy:       65,
			Hold:      45,
			Sell:      30,
		},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.FundamentalWeight <= 0 {
		c.FundamentalWeight = def.FundamentalWeight
	}
	if c.TechnicalWeight <= 0 {
		c.TechnicalWeight = def.TechnicalWeight
	}
	if c.SentimentWeight <= 0 {
		c.SentimentWeight = def.SentimentWeight
	}
	if c.MinSentimentConfidence <= 0 {
		c.MinSentimentConfidence = def.MinSentimentConfidence
	}
	if c.ConflictThreshold <= 0 {
		c.ConflictThreshold = def.ConflictThreshold
	}
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = def.Thresholds
	}
	return c
}

// Inputs is one already-fetched snapshot for a symbol. Nil members are
// unavailable. A zero Coverage is derived from which members are present.
type Inputs struct {
	Symbol       string
	Mode         core.AnalysisType
	Market       *core.MarketData
	Fundamentals *core.FundamentalData
	Technical    *core.TechnicalData
	Sentiment    *core.SentimentData
	Coverage     core.DataCoverage
	Now          time.Time
}

// Engine is the pure scoring core. It holds configuration only, so one
// instance may score any number of snapshots concurrently.
type Engine struct {
	cfg      Config
	detector *conflict.Detector
}

// NewEngine creates an engine.
func NewEngine(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:      cfg,
		detector: conflict.New(cfg.ConflictThreshold),
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Score turns a snapshot into an AnalysisResult. It fails with
// core.ErrSymbolNotFound for an empty symbol and core.ErrInsufficientData
// when neither fundamentals nor technicals can be scored in the given mode.
func (e *Engine) Score(in Inputs) (core.AnalysisResult, error) {
	symbol := strings.TrimSpace(in.Symbol)
	if symbol == "" {
		return core.AnalysisResult{}, core.WrapError(core.ErrSymbolNotFound, errors.New("empty symbol"))
	}

	mode := in.Mode
	if mode == "" {
		mode = core.AnalysisComprehensive
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	price := marketPrice(in.Market)

	var (
		report   fundamental.HealthReport
		resolved core.FundamentalData
		hasFund  bool
	)
	if mode != core.AnalysisTechnical && in.Fundamentals != nil {
		resolved = fundamental.Resolve(*in.Fundamentals, price)
		report = fundamental.Score(resolved)
		hasFund = report.Available()
	}

	var tech technicalReport
	if mode != core.AnalysisFundamental && in.Technical != nil {
		tech = scoreTechnical(*in.Technical, price)
	}

	if !hasFund && !tech.available() {
		return core.AnalysisResult{}, core.WrapError(core.ErrInsufficientData,
			errors.New("no fundamental or technical signal available for "+symbol))
	}

	var sent *core.SentimentData
	if mode == core.AnalysisComprehensive && in.Sentiment != nil && in.Sentiment.ItemCount() > 0 {
		s := *in.Sentiment
		sent = &s
	}

	result := core.AnalysisResult{
		Symbol:       symbol,
		AnalysisType: mode,
		Timestamp:    now,
		Strengths:    []string{},
		Risks:        []string{},
		RiskFactors:  map[string]float64{},
	}
	if mode == core.AnalysisComprehensive {
		result.Sentiment = in.Sentiment
	}

	// Weighted mean over the categories actually present.
	sum, weights := 0.0, 0.0
	var polarities []float64
	if hasFund {
		result.FundamentalScore = core.Float(report.Score)
		sum += e.cfg.FundamentalWeight * report.Score
		weights += e.cfg.FundamentalWeight
		polarities = append(polarities, report.Polarity)
	}
	if tech.available() {
		result.TechnicalScore = core.Float(tech.score)
		sum += e.cfg.TechnicalWeight * tech.score
		weights += e.cfg.TechnicalWeight
		polarities = append(polarities, (tech.score-50)/50)
	}
	overall := sum / weights

	if sent != nil && sent.ConfidenceScore >= e.cfg.MinSentimentConfidence {
		ws := e.cfg.SentimentWeight * sent.ConfidenceScore
		overall = (overall + ws*(50+50*sent.OverallSentiment)) / (1 + ws)
		polarities = append(polarities, sent.OverallSentiment)
	}
	result.OverallScore = round2(core.Clamp(overall, 0, 100))
	result.Recommendation = e.recommend(result.OverallScore)

	if sent != nil && hasFund {
		result.Conflict = e.detector.Detect(symbol, sent.OverallSentiment, report.Polarity)
		if result.Conflict != nil {
			result.Conflict.DetectedAt = now
		}
	}

	coverage := in.Coverage
	if coverage.Requested == 0 {
		coverage = deriveCoverage(mode, in)
	}
	result.Coverage = coverage
	result.Confidence = round2(confidence(coverage.Ratio(), polarities))

	var techData *core.TechnicalData
	if mode != core.AnalysisFundamental {
		techData = in.Technical
	}
	var fundData *core.FundamentalData
	if hasFund {
		fundData = &resolved
	}
	result.RiskFactors = riskFactors(in.Market, fundData, techData, sent)
	result.RiskLevel = riskLevel(result.RiskFactors)

	var growth *float64
	if hasFund {
		growth = resolved.RevenueGrowth
	}
	result.PriceTargets = priceTargets(price, result.OverallScore, growth, result.Confidence, coverage.Ratio(), result.FundamentalScore)

	result.Opportunity = opportunity(report, hasFund, resolved, tech, result.OverallScore)

	if hasFund {
		result.Strengths = append(result.Strengths, report.Strengths...)
	}
	result.Strengths = append(result.Strengths, tech.strengths...)
	if sent != nil && sent.OverallSentiment > 0.2 {
		result.Strengths = append(result.Strengths, "Positive market sentiment")
	}

	if result.Conflict != nil {
		result.Risks = append(result.Risks, conflict.Describe(result.Conflict))
	}
	if hasFund {
		result.Risks = append(result.Risks, report.Weaknesses...)
	}
	result.Risks = append(result.Risks, tech.risks...)
	if sent != nil && sent.OverallSentiment < -0.2 {
		result.Risks = append(result.Risks, "Negative market sentiment")
	}

	return result, nil
}

// recommend maps a score to a recommendation. Each threshold is an inclusive
// lower bound, so the bands partition [0, 100].
func (e *Engine) recommend(score float64) core.Recommendation {
	t := e.cfg.Thresholds
	switch {
	case score >= t.StrongBuy:
		return core.RecommendationStrongBuy
	case score >= t.Buy:
		return core.RecommendationBuy
	case score >= t.Hold:
		return core.RecommendationHold
	case score >= t.Sell:
		return core.RecommendationSell
	}
	return core.RecommendationStrongSell
}

// confidence scales coverage by how well the component polarities agree.
func confidence(coverage float64, polarities []float64) float64 {
	if len(polarities) == 0 || coverage <= 0 {
		return 0
	}
	agreement := 1 - math.Min(stddev(polarities), 1)
	return core.Clamp(100*coverage*(0.6+0.4*agreement), 0, 100)
}

func deriveCoverage(mode core.AnalysisType, in Inputs) core.DataCoverage {
	type category struct {
		name    string
		present bool
	}
	cats := []category{{"market", in.Market != nil}}
	if mode != core.AnalysisTechnical {
		cats = append(cats, category{"fundamentals", in.Fundamentals != nil})
	}
	if mode != core.AnalysisFundamental {
		cats = append(cats, category{"technical", in.Technical != nil})
	}
	if mode == core.AnalysisComprehensive {
		cats = append(cats, category{"sentiment", in.Sentiment != nil && in.Sentiment.ItemCount() > 0})
	}

	c := core.DataCoverage{Requested: len(cats)}
	for _, cat := range cats {
		if cat.present {
			c.Succeeded++
		} else {
			c.Unavailable = append(c.Unavailable, cat.name)
		}
	}
	return c
}

func marketPrice(m *core.MarketData) *float64 {
	if m == nil || m.Price == nil || *m.Price <= 0 || !finite(*m.Price) {
		return nil
	}
	return m.Price
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
	v := 0.0
	for _, x := range values {
		v += (x - m) * (x - m)
	}
	return math.Sqrt(v / float64(len(values)))
}
