package analysis

import (
	"github.com/newthinker/prism/internal/core"
)

// Risk factor keys.
const (
	RiskBollingerWidth      = "bollinger_width"
	RiskDebtToEquity        = "debt_to_equity"
	RiskPERatio             = "pe_ratio"
	RiskSentimentVolatility = "sentiment_volatility"
	RiskDrawdown            = "drawdown_from_high"
)

// riskFactors collects the raw values behind the risk level. It shares no
// inputs with the overall score weighting beyond the raw data itself.
func riskFactors(m *core.MarketData, f *core.FundamentalData, td *core.TechnicalData, s *core.SentimentData) map[string]float64 {
	factors := make(map[string]float64)

	if td != nil && td.BollingerUpper != nil && td.BollingerLower != nil && td.BollingerMiddle != nil && *td.BollingerMiddle > 0 {
		factors[RiskBollingerWidth] = (*td.BollingerUpper - *td.BollingerLower) / *td.BollingerMiddle
	}
	if f != nil && f.DebtToEquity != nil {
		factors[RiskDebtToEquity] = *f.DebtToEquity
	}
	if f != nil && f.PE != nil {
		factors[RiskPERatio] = *f.PE
	}
	if s != nil && s.ItemCount() > 1 {
		factors[RiskSentimentVolatility] = s.Volatility
	}
	if p := marketPrice(m); p != nil && m.High52Week != nil && *m.High52Week > 0 && finite(*m.High52Week) {
		ratio := *p / *m.High52Week
		factors[RiskDrawdown] = core.Clamp(1-ratio, 0, 1)
	}
	return factors
}

// riskPoints maps one factor to 0 (benign) through 3 (severe).
func riskPoints(key string, v float64) (int, bool) {
	bands := func(v float64, edges ...float64) int {
		for i, e := range edges {
			if v < e {
				return i
			}
		}
		return len(edges)
	}

	switch key {
	case RiskBollingerWidth:
		return bands(v, 0.1, 0.2, 0.35), true
	case RiskDebtToEquity:
		if v < 0 {
			return 3, true
		}
		return bands(v, 0.5, 1, 2), true
	case RiskPERatio:
		if v <= 0 {
			return 3, true
		}
		return bands(v, 25, 40, 60), true
	case RiskSentimentVolatility:
		return bands(v, 0.2, 0.4, 0.6), true
	case RiskDrawdown:
		return bands(v, 0.1, 0.25, 0.5), true
	}
	return 0, false
}

// riskLevel averages the points of the known factors. No factors at all
// means risk cannot be told apart from average.
func riskLevel(factors map[string]float64) core.RiskLevel {
	total, n := 0, 0
	for k, v := range factors {
		if p, ok := riskPoints(k, v); ok {
			total += p
			n++
		}
	}
	if n == 0 {
		return core.RiskModerate
	}

	avg := float64(total) / float64(n)
	switch {
	case avg < 0.75:
		return core.RiskLow
	case avg < 1.5:
		return core.RiskModerate
	case avg < 2.25:
		return core.RiskHigh
	}
	return core.RiskVeryHigh
}
