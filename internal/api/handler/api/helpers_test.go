package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newthinker/prism/internal/analysis"
	"github.com/newthinker/prism/internal/api/response"
	"github.com/newthinker/prism/internal/app"
	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/provider/static"
	"github.com/newthinker/prism/internal/storage/assessment"
)

func testFixtures() static.Fixtures {
	return static.Fixtures{
		Market: map[string]core.MarketData{
			"AAPL": {Price: core.Float(120)},
			"MSFT": {Price: core.Float(300)},
		},
		Fundamentals: map[string]core.FundamentalData{
			"AAPL": {ROE: core.Float(0.31), DebtToEquity: core.Float(0.2), PE: core.Float(12), RevenueGrowth: core.Float(0.2)},
			"MSFT": {ROE: core.Float(0.05), DebtToEquity: core.Float(2.5), PE: core.Float(60), RevenueGrowth: core.Float(-0.1)},
		},
		Technical: map[string]core.TechnicalData{
			"AAPL": {RSI: core.Float(40), MACD: core.Float(2), MACDSignal: core.Float(1), SMA50: core.Float(110), SMA200: core.Float(100)},
			"MSFT": {RSI: core.Float(78), MACD: core.Float(-1), MACDSignal: core.Float(0.5), SMA50: core.Float(280), SMA200: core.Float(310)},
		},
	}
}

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	p := static.New(testFixtures())
	return app.New(analysis.NewAnalyzer(p, p, analysis.AnalyzerConfig{}, nil), assessment.NewMemoryStore(100), nil)
}

// decodeData unmarshals the data field of a success envelope into v.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error.Code
}
