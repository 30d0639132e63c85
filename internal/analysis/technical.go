package analysis

import (
	"github.com/newthinker/prism/internal/core"
)

type technicalReport struct {
	score     float64
	signals   int
	strengths []string
	risks     []string
}

func (t technicalReport) available() bool {
	return t.signals > 0
}

// scoreTechnical averages the sub-signals that can be computed from td.
// Price-relative signals need a price and are skipped without one.
func scoreTechnical(td core.TechnicalData, price *float64) technicalReport {
	var r technicalReport
	total := 0.0
	add := func(v float64) {
		total += v
		r.signals++
	}

	if td.RSI != nil {
		rsi := *td.RSI
		switch {
		case rsi < 30:
			add(70)
			r.strengths = append(r.strengths, "RSI oversold (below 30)")
		case rsi < 45:
			add(60)
		case rsi <= 55:
			add(50)
		case rsi <= 70:
			add(55)
		default:
			add(30)
			r.risks = append(r.risks, "RSI overbought (above 70)")
		}
	}

	if td.MACD != nil && td.MACDSignal != nil {
		if *td.MACD > *td.MACDSignal {
			add(65)
			r.strengths = append(r.strengths, "MACD above signal line")
		} else {
			add(35)
			r.risks = append(r.risks, "MACD below signal line")
		}
	}

	if price != nil && td.SMA200 != nil {
		if *price > *td.SMA200 {
			add(65)
			r.strengths = append(r.strengths, "Price above 200-day average")
		} else {
			add(35)
			r.risks = append(r.risks, "Price below 200-day average")
		}
	}

	if td.SMA50 != nil && td.SMA200 != nil {
		if *td.SMA50 > *td.SMA200 {
			add(65)
			r.strengths = append(r.strengths, "50-day average above 200-day average")
		} else {
			add(35)
			r.risks = append(r.risks, "50-day average below 200-day average")
		}
	}

	if pb, ok := percentB(td, price); ok {
		switch {
		case pb < 0.2:
			add(65)
			r.strengths = append(r.strengths, "Price near lower Bollinger band")
		case pb > 0.8:
			add(35)
			r.risks = append(r.risks, "Price near upper Bollinger band")
		default:
			add(50)
		}
	}

	if r.signals > 0 {
		r.score = core.Clamp(total/float64(r.signals), 0, 100)
	}
	return r
}

// percentB locates price within the Bollinger bands: 0 at the lower band,
// 1 at the upper band.
func percentB(td core.TechnicalData, price *float64) (float64, bool) {
	if price == nil || td.BollingerUpper == nil || td.BollingerLower == nil {
		return 0, false
	}
	width := *td.BollingerUpper - *td.BollingerLower
	if width <= 0 {
		return 0, false
	}
	return (*price - *td.BollingerLower) / width, true
}
