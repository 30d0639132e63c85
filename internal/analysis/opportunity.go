package analysis

import (
	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/fundamental"
)

// Tag breakpoints.
const (
	valueTagMin    = 70.0
	growthTagMin   = 70.0
	momentumTagMin = 65.0
	incomeYieldMin = 0.03
)

// opportunity builds the component scores and multi-label tags. Components
// without inputs stay nil.
func opportunity(report fundamental.HealthReport, hasFund bool, f core.FundamentalData, tech technicalReport, overall float64) core.OpportunityScore {
	o := core.OpportunityScore{
		Overall: overall,
		Types:   []core.OpportunityType{},
	}

	if hasFund {
		o.FundamentalScore = core.Float(report.Score)
		o.Value = meanOf(report.SubScores, fundamental.MetricPE, fundamental.MetricPB)
		o.Growth = meanOf(report.SubScores, fundamental.MetricRevenueGrowth)
		o.Quality = meanOf(report.SubScores, fundamental.MetricROE, fundamental.MetricProfitMargin, fundamental.MetricDebtToEquity)
	}
	if tech.available() {
		o.TechnicalScore = core.Float(tech.score)
		o.Momentum = core.Float(tech.score)
	}

	if o.Value != nil && *o.Value >= valueTagMin {
		o.Types = append(o.Types, core.OpportunityValue)
	}
	if o.Growth != nil && *o.Growth >= growthTagMin {
		o.Types = append(o.Types, core.OpportunityGrowth)
	}
	if o.Momentum != nil && *o.Momentum >= momentumTagMin {
		o.Types = append(o.Types, core.OpportunityMomentum)
	}
	if hasFund && f.DividendYield != nil && *f.DividendYield >= incomeYieldMin {
		o.Types = append(o.Types, core.OpportunityIncome)
	}
	return o
}

func meanOf(sub map[string]float64, keys ...string) *float64 {
	total, n := 0.0, 0
	for _, k := range keys {
		if v, ok := sub[k]; ok {
			total += v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return core.Float(total / float64(n))
}
