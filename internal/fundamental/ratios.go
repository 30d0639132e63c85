// Package fundamental derives valuation and health ratios and scores a
// company's financial health on a 0-100 scale.
package fundamental

import (
	"github.com/newthinker/prism/internal/core"
)

// PE returns price / earnings per share.
func PE(price, eps *float64) *float64 {
	return ratio(price, eps)
}

// PB returns price / book value per share.
func PB(price, bookValuePerShare *float64) *float64 {
	return ratio(price, bookValuePerShare)
}

// ROE returns net income / shareholders' equity.
func ROE(netIncome, totalEquity *float64) *float64 {
	return ratio(netIncome, totalEquity)
}

// DebtToEquity returns total debt / shareholders' equity.
func DebtToEquity(totalDebt, totalEquity *float64) *float64 {
	return ratio(totalDebt, totalEquity)
}

// DividendYield returns dividend per share / price.
func DividendYield(dividendPerShare, price *float64) *float64 {
	return ratio(dividendPerShare, price)
}

func ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	return core.Float(*num / *den)
}

// Resolve returns a copy of f with absent ratios derived from the raw
// statement values. Reported ratios are never overwritten.
func Resolve(f core.FundamentalData, price *float64) core.FundamentalData {
	if f.PE == nil {
		f.PE = PE(price, f.EPS)
	}
	if f.PB == nil {
		f.PB = PB(price, f.BookValuePerShare)
	}
	if f.ROE == nil {
		f.ROE = ROE(f.NetIncome, f.TotalEquity)
	}
	if f.DebtToEquity == nil {
		f.DebtToEquity = DebtToEquity(f.TotalDebt, f.TotalEquity)
	}
	if f.DividendYield == nil {
		f.DividendYield = DividendYield(f.DividendPerShare, price)
	}
	return f
}
