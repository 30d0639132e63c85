package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// RSI returns the latest Relative Strength Index. It needs more than period
// closes.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) <= period {
		return 0, false
	}
	return finite(last(talib.Rsi(closes, period)))
}

// MACD returns the latest MACD line and signal line.
func MACD(closes []float64, fast, slow, signal int) (macd, sig float64, ok bool) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow+signal-1 {
		return 0, 0, false
	}
	line, signalLine, _ := talib.Macd(closes, fast, slow, signal)
	m, ok1 := finite(last(line))
	s, ok2 := finite(last(signalLine))
	return m, s, ok1 && ok2
}

// Bands holds one Bollinger band reading.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger returns the latest bands at k standard deviations.
func Bollinger(closes []float64, period int, k float64) (Bands, bool) {
	if period <= 1 || len(closes) < period {
		return Bands{}, false
	}
	upper, middle, lower := talib.BBands(closes, period, k, k, talib.SMA)
	u, ok1 := finite(last(upper))
	m, ok2 := finite(last(middle))
	l, ok3 := finite(last(lower))
	if !ok1 || !ok2 || !ok3 {
		return Bands{}, false
	}
	return Bands{Upper: u, Middle: m, Lower: l}, true
}

// ATR returns the latest Average True Range.
func ATR(high, low, close []float64, period int) (float64, bool) {
	n := len(close)
	if period <= 0 || n <= period || len(high) != n || len(low) != n {
		return 0, false
	}
	return finite(last(talib.Atr(high, low, close, period)))
}

func finite(v float64, ok bool) (float64, bool) {
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
