package alert

import (
	"github.com/newthinker/prism/internal/core"
)

// Metric names available to rule expressions.
const (
	MetricOverallScore        = "overall_score"
	MetricConfidence          = "confidence"
	MetricFundamentalScore    = "fundamental_score"
	MetricTechnicalScore      = "technical_score"
	MetricSentiment           = "sentiment"
	MetricSentimentConfidence = "sentiment_confidence"
	MetricSentimentVolatility = "sentiment_volatility"
	MetricConflictSeverity    = "conflict_severity"
	MetricRiskLevel           = "risk_level"
	MetricLongUpside          = "long_upside"
)

var riskRank = map[core.RiskLevel]float64{
	core.RiskLow:      1,
	core.RiskModerate: 2,
	core.RiskHigh:     3,
	core.RiskVeryHigh: 4,
}

// Metrics flattens a result into rule inputs. Absent scores are omitted so
// rules on them never fire; conflict_severity is 0 without a conflict.
// Risk factors appear as "risk_<name>".
func Metrics(r core.AnalysisResult) map[string]float64 {
	m := map[string]float64{
		MetricOverallScore:     r.OverallScore,
		MetricConfidence:       r.Confidence,
		MetricConflictSeverity: 0,
	}
	if r.FundamentalScore != nil {
		m[MetricFundamentalScore] = *r.FundamentalScore
	}
	if r.TechnicalScore != nil {
		m[MetricTechnicalScore] = *r.TechnicalScore
	}
	if r.Sentiment != nil {
		m[MetricSentiment] = r.Sentiment.OverallSentiment
		m[MetricSentimentConfidence] = r.Sentiment.ConfidenceScore
		m[MetricSentimentVolatility] = r.Sentiment.Volatility
	}
	if r.Conflict != nil {
		m[MetricConflictSeverity] = r.Conflict.Severity
	}
	if rank, ok := riskRank[r.RiskLevel]; ok {
		m[MetricRiskLevel] = rank
	}
	if pt, ok := r.PriceTargets[core.HorizonLong]; ok {
		m[MetricLongUpside] = pt.ExpectedReturn
	}
	for name, v := range r.RiskFactors {
		m["risk_"+name] = v
	}
	return m
}
