package sentiment

// Bullish phrases and their weights. Multi-word phrases are matched as a unit.
var positiveTerms = map[string]float64{
	"bullish":           0.7,
	"rally":             0.6,
	"rallies":           0.6,
	"surge":             0.7,
	"surges":            0.7,
	"soar":              0.7,
	"soars":             0.7,
	"jump":              0.4,
	"jumps":             0.4,
	"gain":              0.3,
	"gains":             0.3,
	"upbeat":            0.5,
	"positive":          0.4,
	"growth":            0.3,
	"upgrade":           0.6,
	"upgraded":          0.6,
	"outperform":        0.6,
	"buy":               0.4,
	"strong":            0.4,
	"recovery":          0.5,
	"breakout":          0.6,
	"record high":       0.7,
	"all-time high":     0.7,
	"beat":              0.5,
	"beats":             0.5,
	"beats estimates":   0.6,
	"exceeds":           0.5,
	"expansion":         0.4,
	"profit":            0.3,
	"profitable":        0.4,
	"raises guidance":   0.7,
	"raised guidance":   0.7,
	"buyback":           0.4,
	"dividend increase": 0.5,
	"partnership":       0.3,
	"approval":          0.5,
	"moon":              0.5,
	"undervalued":       0.4,
}

// Bearish phrases and their weights.
var negativeTerms = map[string]float64{
	"bearish":          0.7,
	"crash":            0.8,
	"crashes":          0.8,
	"plunge":           0.7,
	"plunges":          0.7,
	"slump":            0.6,
	"tumble":           0.6,
	"tumbles":          0.6,
	"drop":             0.4,
	"drops":            0.4,
	"negative":         0.4,
	"downgrade":        0.6,
	"downgraded":       0.6,
	"underperform":     0.6,
	"sell":             0.4,
	"weak":             0.4,
	"decline":          0.5,
	"declines":         0.5,
	"loss":             0.4,
	"losses":           0.4,
	"selloff":          0.7,
	"sell-off":         0.7,
	"correction":       0.4,
	"default":          0.7,
	"fraud":            0.8,
	"lawsuit":          0.5,
	"investigation":    0.5,
	"recall":           0.5,
	"layoffs":          0.4,
	"miss":             0.5,
	"misses":           0.5,
	"misses estimates": 0.6,
	"cuts guidance":    0.7,
	"lowered guidance": 0.7,
	"warning":          0.5,
	"bankruptcy":       0.9,
	"overvalued":       0.4,
	"dilution":         0.5,
}

// Neutral financial vocabulary used for relevance density and keyword
// extraction only.
var neutralTerms = []string{
	"earnings",
	"revenue",
	"guidance",
	"dividend",
	"eps",
	"margin",
	"valuation",
	"analyst",
	"quarter",
	"forecast",
	"shares",
	"stock",
	"market cap",
	"acquisition",
	"merger",
	"ipo",
	"sec filing",
	"price target",
	"outlook",
	"debt",
}
