package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/newthinker/prism/internal/core"
)

// GetFundamentals implements provider.DataProvider from the quoteSummary
// financialData, defaultKeyStatistics and summaryDetail modules.
func (y *Yahoo) GetFundamentals(ctx context.Context, symbol string) (*core.FundamentalData, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/%s?modules=%s", y.cfg.SummaryURL, url.PathEscape(toYahooSymbol(symbol)), summaryModules)

	var resp summaryResponse
	if err := y.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.QuoteSummary.Error != nil {
		if strings.EqualFold(resp.QuoteSummary.Error.Code, "Not Found") {
			return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("%s", resp.QuoteSummary.Error.Description))
		}
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("yahoo error: %s", resp.QuoteSummary.Error.Description))
	}
	// Funds and indices come back with an empty result.
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no fundamentals for symbol: %s", symbol))
	}

	r := resp.QuoteSummary.Result[0]
	f := &core.FundamentalData{
		Symbol:            symbol,
		PE:                r.SummaryDetail.TrailingPE.ptr(),
		PB:                r.KeyStatistics.PriceToBook.ptr(),
		ROE:               r.FinancialData.ReturnOnEquity.ptr(),
		RevenueGrowth:     r.FinancialData.RevenueGrowth.ptr(),
		ProfitMargin:      r.FinancialData.ProfitMargins.ptr(),
		EPS:               r.KeyStatistics.TrailingEps.ptr(),
		DividendPerShare:  r.SummaryDetail.DividendRate.ptr(),
		DividendYield:     r.SummaryDetail.DividendYield.ptr(),
		BookValuePerShare: r.KeyStatistics.BookValue.ptr(),
		NetIncome:         r.KeyStatistics.NetIncomeToCommon.ptr(),
		TotalDebt:         r.FinancialData.TotalDebt.ptr(),
		LastUpdated:       time.Now().UTC(),
	}
	// Yahoo reports debt-to-equity as a percentage.
	if de := r.FinancialData.DebtToEquity.ptr(); de != nil {
		f.DebtToEquity = core.Float(*de / 100)
	}
	if ts := r.KeyStatistics.MostRecentQuarter.ptr(); ts != nil {
		q := time.Unix(int64(*ts), 0).UTC()
		f.FiscalYear = q.Year()
		f.FiscalQuarter = (int(q.Month())-1)/3 + 1
	}
	return f, nil
}

// rawValue is Yahoo's {"raw": 1.23, "fmt": "1.23"} number wrapper. An
// empty object means the value is unknown.
type rawValue struct {
	Raw *float64 `json:"raw"`
}

func (v rawValue) ptr() *float64 {
	if v.Raw == nil {
		return nil
	}
	return core.Float(*v.Raw)
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []summaryResult `json:"result"`
		Error  *apiError       `json:"error"`
	} `json:"quoteSummary"`
}

type summaryResult struct {
	FinancialData struct {
		ReturnOnEquity rawValue `json:"returnOnEquity"`
		DebtToEquity   rawValue `json:"debtToEquity"`
		RevenueGrowth  rawValue `json:"revenueGrowth"`
		ProfitMargins  rawValue `json:"profitMargins"`
		TotalDebt      rawValue `json:"totalDebt"`
	} `json:"financialData"`
	KeyStatistics struct {
		TrailingEps       rawValue `json:"trailingEps"`
		BookValue         rawValue `json:"bookValue"`
		PriceToBook       rawValue `json:"priceToBook"`
		NetIncomeToCommon rawValue `json:"netIncomeToCommon"`
		MostRecentQuarter rawValue `json:"mostRecentQuarter"`
	} `json:"defaultKeyStatistics"`
	SummaryDetail struct {
		TrailingPE    rawValue `json:"trailingPE"`
		DividendRate  rawValue `json:"dividendRate"`
		DividendYield rawValue `json:"dividendYield"`
	} `json:"summaryDetail"`
}
