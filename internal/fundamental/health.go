package fundamental

import (
	"math"
	"sort"

	"github.com/newthinker/prism/internal/core"
)

// Metric keys used in sub-score and percentile maps.
const (
	MetricROE           = "roe"
	MetricDebtToEquity  = "debt_to_equity"
	MetricPE            = "pe_ratio"
	MetricPB            = "pb_ratio"
	MetricRevenueGrowth = "revenue_growth"
	MetricProfitMargin  = "profit_margin"
	MetricDividendYield = "dividend_yield"
)

// HealthReport is the outcome of scoring one FundamentalData record.
type HealthReport struct {
	Score      float64            `json:"score"`
	Polarity   float64            `json:"polarity"`
	Strengths  []string           `json:"strengths"`
	Weaknesses []string           `json:"weaknesses"`
	SubScores  map[string]float64 `json:"sub_scores"`
	Metrics    int                `json:"metrics"`
}

// Available reports whether at least one metric could be scored.
func (r HealthReport) Available() bool {
	return r.Metrics > 0
}

// fact is a strength or weakness tied to a breakpoint crossing.
type fact struct {
	text      string
	deviation float64
}

type metric struct {
	key   string
	value func(core.FundamentalData) *float64
	score func(float64) float64
	// good is the breakpoint used to order facts by how far a value sits from it.
	good     float64
	strength func(float64) string
	weakness func(float64) string
}

var metrics = []metric{
	{
		key:   MetricROE,
		value: func(f core.FundamentalData) *float64 { return f.ROE },
		score: func(v float64) float64 {
			switch {
			case v > 0.15:
				return 90
			case v >= 0.10:
				return 70
			case v >= 0:
				return 40
			}
			return 15
		},
		good:     0.15,
		strength: when(func(v float64) bool { return v > 0.15 }, "ROE above 15%"),
		weakness: when(func(v float64) bool { return v < 0.10 }, "ROE below 10%"),
	},
	{
		key:   MetricDebtToEquity,
		value: func(f core.FundamentalData) *float64 { return f.DebtToEquity },
		score: func(v float64) float64 {
			switch {
			case v < 0:
				return 10
			case v < 0.3:
				return 90
			case v <= 0.6:
				return 70
			case v <= 1.0:
				return 40
			}
			return 20
		},
		good:     0.3,
		strength: when(func(v float64) bool { return v >= 0 && v < 0.3 }, "Debt-to-equity below 0.3"),
		weakness: func(v float64) string {
			switch {
			case v < 0:
				return "Negative shareholders' equity"
			case v > 0.6:
				return "Debt-to-equity above 0.6"
			}
			return ""
		},
	},
	{
		key:   MetricPE,
		value: func(f core.FundamentalData) *float64 { return f.PE },
		score: func(v float64) float64 {
			switch {
			case v < 0:
				return 20
			case v < 15:
				return 85
			case v <= 25:
				return 70
			case v <= 40:
				return 55
			}
			return 30
		},
		good:     15,
		strength: when(func(v float64) bool { return v > 0 && v < 15 }, "P/E below 15"),
		weakness: func(v float64) string {
			switch {
			case v < 0:
				return "Negative earnings"
			case v > 40:
				return "P/E above 40"
			}
			return ""
		},
	},
	{
		key:   MetricPB,
		value: func(f core.FundamentalData) *float64 { return f.PB },
		score: func(v float64) float64 {
			switch {
			case v < 0:
				return 20
			case v < 1:
				return 85
			case v <= 3:
				return 70
			case v <= 6:
				return 50
			}
			return 35
		},
		good:     1,
		strength: when(func(v float64) bool { return v >= 0 && v < 1 }, "Trading below book value"),
		weakness: func(v float64) string {
			switch {
			case v < 0:
				return "Negative book value"
			case v > 6:
				return "P/B above 6"
			}
			return ""
		},
	},
	{
		key:   MetricRevenueGrowth,
		value: func(f core.FundamentalData) *float64 { return f.RevenueGrowth },
		score: func(v float64) float64 {
			switch {
			case v > 0.15:
				return 90
			case v >= 0.05:
				return 70
			case v >= 0:
				return 50
			}
			return 25
		},
		good:     0.15,
		strength: when(func(v float64) bool { return v > 0.15 }, "Revenue growth above 15%"),
		weakness: when(func(v float64) bool { return v < 0 }, "Revenue declining"),
	},
	{
		key:   MetricProfitMargin,
		value: func(f core.FundamentalData) *float64 { return f.ProfitMargin },
		score: func(v float64) float64 {
			switch {
			case v > 0.20:
				return 90
			case v >= 0.10:
				return 70
			case v >= 0:
				return 50
			}
			return 20
		},
		good:     0.20,
		strength: when(func(v float64) bool { return v > 0.20 }, "Profit margin above 20%"),
		weakness: when(func(v float64) bool { return v < 0 }, "Negative profit margin"),
	},
	{
		key:   MetricDividendYield,
		value: func(f core.FundamentalData) *float64 { return f.DividendYield },
		score: func(v float64) float64 {
			switch {
			case v > 0.04:
				return 85
			case v >= 0.02:
				return 70
			case v > 0:
				return 60
			}
			return 50
		},
		good:     0.04,
		strength: when(func(v float64) bool { return v > 0.04 }, "Dividend yield above 4%"),
		weakness: func(float64) string { return "" },
	},
}

func when(cond func(float64) bool, text string) func(float64) string {
	return func(v float64) string {
		if cond(v) {
			return text
		}
		return ""
	}
}

func usable(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0)
}

// Score rates f on a 0-100 scale by averaging the sub-scores of the metrics
// that are present. Absent metrics are excluded, never treated as zero.
// With no usable metric the report is neutral and Available is false.
func Score(f core.FundamentalData) HealthReport {
	report := HealthReport{
		Score:      50,
		Strengths:  []string{},
		Weaknesses: []string{},
		SubScores:  make(map[string]float64),
	}

	var strengths, weaknesses []fact
	total := 0.0
	for _, m := range metrics {
		p := m.value(f)
		if !usable(p) {
			continue
		}
		v := *p
		sub := m.score(v)
		report.SubScores[m.key] = sub
		total += sub
		report.Metrics++

		dev := math.Abs(v-m.good) / math.Max(math.Abs(m.good), 0.01)
		if s := m.strength(v); s != "" {
			strengths = append(strengths, fact{text: s, deviation: dev})
		}
		if w := m.weakness(v); w != "" {
			weaknesses = append(weaknesses, fact{text: w, deviation: dev})
		}
	}

	if report.Metrics == 0 {
		return report
	}

	report.Score = core.Clamp(total/float64(report.Metrics), 0, 100)
	report.Polarity = core.Clamp((report.Score-50)/50, -1, 1)
	report.Strengths = orderFacts(strengths)
	report.Weaknesses = orderFacts(weaknesses)
	return report
}

// orderFacts puts the most pronounced breakpoint crossing first.
func orderFacts(facts []fact) []string {
	sort.SliceStable(facts, func(i, j int) bool { return facts[i].deviation > facts[j].deviation })
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.text
	}
	return out
}
