package analysis

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/newthinker/prism/internal/core"
)

// Rationale tags attached to price targets.
const (
	RationaleStrongFundamentals = "strong_fundamentals"
	RationaleGrowthMomentum     = "growth_momentum"
	RationaleScoreDriven        = "score_driven"
	RationaleBearishOutlook     = "bearish_outlook"
	RationaleLimitedData        = "limited_data"
)

var horizonFraction = map[core.Horizon]float64{
	core.HorizonShort:  0.25,
	core.HorizonMedium: 0.5,
	core.HorizonLong:   1.0,
}

var horizonConfidence = map[core.Horizon]float64{
	core.HorizonShort:  0.9,
	core.HorizonMedium: 0.75,
	core.HorizonLong:   0.6,
}

// expectedReturn is the annualized return implied by the overall score,
// tilted by revenue growth. A score of 50 with flat growth implies zero.
func expectedReturn(overall float64, revenueGrowth *float64) float64 {
	r := (overall - 50) / 50 * 0.20
	if revenueGrowth != nil && finite(*revenueGrowth) {
		r += 0.25 * core.Clamp(*revenueGrowth, -0.2, 0.2)
	}
	return r
}

// priceTargets projects price over each horizon. Returns nil without a price.
func priceTargets(price *float64, overall float64, revenueGrowth *float64, confidence, coverage float64, fundamentalScore *float64) map[core.Horizon]core.PriceTarget {
	if price == nil || *price <= 0 || !finite(*price) {
		return nil
	}

	r := expectedReturn(overall, revenueGrowth)
	rationale := pickRationale(r, revenueGrowth, coverage, fundamentalScore)
	base := decimal.NewFromFloat(*price)

	targets := make(map[core.Horizon]core.PriceTarget, len(core.Horizons))
	for _, h := range core.Horizons {
		ret := r * horizonFraction[h]
		p := base.Mul(decimal.NewFromFloat(1 + ret)).Round(2)
		targets[h] = core.PriceTarget{
			Horizon:        h,
			Price:          p.InexactFloat64(),
			ExpectedReturn: round4(ret),
			Confidence:     round4(confidence / 100 * horizonConfidence[h]),
			Rationale:      rationale,
		}
	}
	return targets
}

func pickRationale(r float64, revenueGrowth *float64, coverage float64, fundamentalScore *float64) string {
	switch {
	case coverage < 0.5:
		return RationaleLimitedData
	case r < 0:
		return RationaleBearishOutlook
	case revenueGrowth != nil && *revenueGrowth > 0.1:
		return RationaleGrowthMomentum
	case fundamentalScore != nil && *fundamentalScore >= 70:
		return RationaleStrongFundamentals
	}
	return RationaleScoreDriven
}

// finite reports whether v can be represented as a decimal.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round2(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func round4(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}
