package core

import "time"

// Recommendation is the categorical call derived from the overall score.
type Recommendation string

const (
	RecommendationStrongBuy  Recommendation = "STRONG_BUY"
	RecommendationBuy        Recommendation = "BUY"
	RecommendationHold       Recommendation = "HOLD"
	RecommendationSell       Recommendation = "SELL"
	RecommendationStrongSell Recommendation = "STRONG_SELL"
)

// IsBuy reports whether r is a buy-class recommendation.
func (r Recommendation) IsBuy() bool {
	return r == RecommendationBuy || r == RecommendationStrongBuy
}

// IsSell reports whether r is a sell-class recommendation.
func (r Recommendation) IsSell() bool {
	return r == RecommendationSell || r == RecommendationStrongSell
}

// RiskLevel is independent of the return-oriented recommendation.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

// AnalysisType tags which signal categories an analysis was asked to use.
type AnalysisType string

const (
	AnalysisComprehensive AnalysisType = "comprehensive"
	AnalysisFundamental   AnalysisType = "fundamental"
	AnalysisTechnical     AnalysisType = "technical"
)

// ParseAnalysisType maps a user-supplied mode, defaulting to comprehensive.
func ParseAnalysisType(s string) (AnalysisType, bool) {
	switch AnalysisType(s) {
	case "", AnalysisComprehensive, "full":
		return AnalysisComprehensive, true
	case AnalysisFundamental:
		return AnalysisFundamental, true
	case AnalysisTechnical:
		return AnalysisTechnical, true
	}
	return "", false
}

// OpportunityType is a non-exclusive classification tag.
type OpportunityType string

const (
	OpportunityValue    OpportunityType = "value"
	OpportunityGrowth   OpportunityType = "growth"
	OpportunityMomentum OpportunityType = "momentum"
	OpportunityIncome   OpportunityType = "income"
)

// OpportunityScore carries the component scores behind the overall score.
type OpportunityScore struct {
	Value            *float64          `json:"value,omitempty"`
	Growth           *float64          `json:"growth,omitempty"`
	Momentum         *float64          `json:"momentum,omitempty"`
	Quality          *float64          `json:"quality,omitempty"`
	FundamentalScore *float64          `json:"fundamental_score,omitempty"`
	TechnicalScore   *float64          `json:"technical_score,omitempty"`
	Overall          float64           `json:"overall_score"`
	Types            []OpportunityType `json:"types"`
}

// Horizon of a price target.
type Horizon string

const (
	HorizonShort  Horizon = "short"
	HorizonMedium Horizon = "medium"
	HorizonLong   Horizon = "long"
)

// Horizons in ascending order of duration.
var Horizons = []Horizon{HorizonShort, HorizonMedium, HorizonLong}

// PriceTarget is an expected price for one horizon.
type PriceTarget struct {
	Horizon        Horizon `json:"horizon"`
	Price          float64 `json:"price"`
	ExpectedReturn float64 `json:"expected_return"`
	Confidence     float64 `json:"confidence"`
	Rationale      string  `json:"rationale"`
}

// DataCoverage reports how many signal categories were usable.
type DataCoverage struct {
	Requested   int      `json:"requested"`
	Succeeded   int      `json:"succeeded"`
	Unavailable []string `json:"unavailable,omitempty"`
}

// Ratio is the share of requested categories that succeeded.
func (c DataCoverage) Ratio() float64 {
	if c.Requested == 0 {
		return 0
	}
	return float64(c.Succeeded) / float64(c.Requested)
}

// AnalysisResult is the terminal assessment handed to persistence,
// explainers and notifiers.
type AnalysisResult struct {
	ID               string                  `json:"id,omitempty"`
	Symbol           string                  `json:"symbol"`
	Recommendation   Recommendation          `json:"recommendation"`
	Confidence       float64                 `json:"confidence"`
	OverallScore     float64                 `json:"overall_score"`
	FundamentalScore *float64                `json:"fundamental_score,omitempty"`
	TechnicalScore   *float64                `json:"technical_score,omitempty"`
	RiskLevel        RiskLevel               `json:"risk_level"`
	Strengths        []string                `json:"strengths"`
	Risks            []string                `json:"risks"`
	PriceTargets     map[Horizon]PriceTarget `json:"price_targets,omitempty"`
	RiskFactors      map[string]float64      `json:"risk_factors"`
	Opportunity      OpportunityScore        `json:"opportunity"`
	Sentiment        *SentimentData          `json:"sentiment,omitempty"`
	Conflict         *SentimentConflict      `json:"conflict,omitempty"`
	AnalysisType     AnalysisType            `json:"analysis_type"`
	Coverage         DataCoverage            `json:"coverage"`
	Timestamp        time.Time               `json:"timestamp"`
}
