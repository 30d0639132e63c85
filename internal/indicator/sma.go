package indicator

import (
	"github.com/markcheno/go-talib"
)

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}
	return trim(talib.Sma(prices, period), period-1)
}

// EMA calculates Exponential Moving Average, seeded with the SMA of the
// first period values. Same length contract as SMA.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}
	return trim(talib.Ema(prices, period), period-1)
}

// trim drops the lookback prefix talib fills with zeros.
func trim(values []float64, lookback int) []float64 {
	if lookback >= len(values) {
		return []float64{}
	}
	out := make([]float64, len(values)-lookback)
	copy(out, values[lookback:])
	return out
}

// last returns the final element, or false for an empty slice.
func last(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}
