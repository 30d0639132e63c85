package indicator

import (
	"github.com/newthinker/prism/internal/core"
)

// levelWindow is the number of recent bars used for support and resistance.
const levelWindow = 20

// Snapshot computes every indicator the bar history is long enough for.
// Bars must be in ascending time order. Indicators without enough history
// stay nil.
func Snapshot(symbol, timeframe string, bars []core.OHLCV) core.TechnicalData {
	td := core.TechnicalData{Symbol: symbol, Timeframe: timeframe}
	if len(bars) == 0 {
		return td
	}
	td.Timestamp = bars[len(bars)-1].Time

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	td.SMA20 = lastPtr(SMA(closes, 20))
	td.SMA50 = lastPtr(SMA(closes, 50))
	td.SMA200 = lastPtr(SMA(closes, 200))
	td.EMA12 = lastPtr(EMA(closes, 12))
	td.EMA26 = lastPtr(EMA(closes, 26))

	if v, ok := RSI(closes, 14); ok {
		td.RSI = core.Float(v)
	}
	if m, s, ok := MACD(closes, 12, 26, 9); ok {
		td.MACD = core.Float(m)
		td.MACDSignal = core.Float(s)
	}
	if b, ok := Bollinger(closes, 20, 2); ok {
		td.BollingerUpper = core.Float(b.Upper)
		td.BollingerMiddle = core.Float(b.Middle)
		td.BollingerLower = core.Float(b.Lower)
	}
	if v, ok := ATR(highs, lows, closes, 14); ok {
		td.ATR = core.Float(v)
	}

	support, resistance := levels(lows, highs, levelWindow)
	td.Support = core.Float(support)
	td.Resistance = core.Float(resistance)
	return td
}

// levels returns the lowest low and highest high of the last window bars.
func levels(lows, highs []float64, window int) (float64, float64) {
	start := len(lows) - window
	if start < 0 {
		start = 0
	}
	support, resistance := lows[start], highs[start]
	for i := start + 1; i < len(lows); i++ {
		if lows[i] < support {
			support = lows[i]
		}
		if highs[i] > resistance {
			resistance = highs[i]
		}
	}
	return support, resistance
}

func lastPtr(values []float64) *float64 {
	v, ok := finite(last(values))
	if !ok {
		return nil
	}
	return core.Float(v)
}
