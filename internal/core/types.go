package core

import "time"

// Market represents a trading market
type Market string

const (
	MarketUS  Market = "US"
	MarketHK  Market = "HK"
	MarketCNA Market = "CN_A"
	MarketEU  Market = "EU"
)

// OHLCV represents a candlestick/bar
type OHLCV struct {
	Symbol   string
	Interval string // "1d", "1wk"
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	Time     time.Time
}

// MarketData is a point-in-time quote snapshot. Any numeric field may be nil.
type MarketData struct {
	Symbol        string    `json:"symbol"`
	Price         *float64  `json:"price,omitempty"`
	Change        *float64  `json:"change,omitempty"`
	ChangePercent *float64  `json:"change_percent,omitempty"`
	Volume        *float64  `json:"volume,omitempty"`
	High52Week    *float64  `json:"high_52_week,omitempty"`
	Low52Week     *float64  `json:"low_52_week,omitempty"`
	AvgVolume     *float64  `json:"avg_volume,omitempty"`
	MarketCap     *float64  `json:"market_cap,omitempty"`
	PE            *float64  `json:"pe,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// FundamentalData holds reported ratios and the raw statement values they
// derive from. Percent-style ratios are fractions: ROE of 31% is 0.31.
type FundamentalData struct {
	Symbol           string    `json:"symbol"`
	PE               *float64  `json:"pe,omitempty"`
	PB               *float64  `json:"pb,omitempty"`
	ROE              *float64  `json:"roe,omitempty"`
	DebtToEquity     *float64  `json:"debt_to_equity,omitempty"`
	RevenueGrowth    *float64  `json:"revenue_growth,omitempty"`
	ProfitMargin     *float64  `json:"profit_margin,omitempty"`
	EPS              *float64  `json:"eps,omitempty"`
	DividendPerShare *float64  `json:"dividend_per_share,omitempty"`
	DividendYield    *float64  `json:"dividend_yield,omitempty"`
	FiscalQuarter    int       `json:"fiscal_quarter,omitempty"`
	FiscalYear       int       `json:"fiscal_year,omitempty"`
	LastUpdated      time.Time `json:"last_updated"`

	BookValuePerShare *float64 `json:"book_value_per_share,omitempty"`
	NetIncome         *float64 `json:"net_income,omitempty"`
	TotalEquity       *float64 `json:"total_equity,omitempty"`
	TotalDebt         *float64 `json:"total_debt,omitempty"`
}

// TechnicalData holds indicator values for one timeframe. Any field may be nil.
type TechnicalData struct {
	Symbol          string    `json:"symbol"`
	SMA20           *float64  `json:"sma_20,omitempty"`
	SMA50           *float64  `json:"sma_50,omitempty"`
	SMA200          *float64  `json:"sma_200,omitempty"`
	EMA12           *float64  `json:"ema_12,omitempty"`
	EMA26           *float64  `json:"ema_26,omitempty"`
	RSI             *float64  `json:"rsi,omitempty"`
	MACD            *float64  `json:"macd,omitempty"`
	MACDSignal      *float64  `json:"macd_signal,omitempty"`
	BollingerUpper  *float64  `json:"bollinger_upper,omitempty"`
	BollingerMiddle *float64  `json:"bollinger_middle,omitempty"`
	BollingerLower  *float64  `json:"bollinger_lower,omitempty"`
	ATR             *float64  `json:"atr,omitempty"`
	Support         *float64  `json:"support,omitempty"`
	Resistance      *float64  `json:"resistance,omitempty"`
	Timeframe       string    `json:"timeframe"`
	Timestamp       time.Time `json:"timestamp"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
