package eastmoney

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/provider"
)

var _ provider.DataProvider = (*Eastmoney)(nil)

const quoteBody = `{"rc":0,"data":{"f43":1700.5,"f44":1712.0,"f45":1690.0,"f46":1695.0,"f47":25000,
"f55":48.2,"f57":"600519","f58":"贵州茅台","f60":1680.5,"f86":1767225600,"f92":180.3,
"f116":2136000000000,"f162":28.4,"f167":9.4,"f173":33.1,"f174":1900.0,"f175":1400.0}}`

const sparseQuoteBody = `{"rc":0,"data":{"f43":10.5,"f44":"-","f45":"-","f46":"-","f47":"-",
"f55":"-","f57":"000001","f58":"平安银行","f60":10.0,"f86":0,"f92":"-",
"f116":"-","f162":"-","f167":"-","f173":"-","f174":"-","f175":"-"}}`

func klineBody(n int) string {
	lines := make([]string, 0, n+1)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		lines = append(lines, fmt.Sprintf(`"%s,%.2f,%.2f,%.2f,%.2f,%d"`,
			start.AddDate(0, 0, i).Format("2006-01-02"), c-0.5, c, c+1, c-1, 1000))
	}
	lines = append(lines, `"garbage"`)
	return `{"rc":0,"data":{"code":"600519","name":"贵州茅台","klines":[` + strings.Join(lines, ",") + `]}}`
}

func newServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("secid") {
		case "1.600519":
			_, _ = w.Write([]byte(quoteBody))
		case "0.000001":
			_, _ = w.Write([]byte(sparseQuoteBody))
		case "0.000002":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"rc":0,"data":null}`))
		}
	})
	mux.HandleFunc("/kline", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		if q.Get("secid") != "1.600519" {
			_, _ = w.Write([]byte(`{"rc":0,"data":null}`))
			return
		}
		assert.Equal(t, "1", q.Get("fqt"))
		assert.Equal(t, "30", q.Get("lmt"))
		_, _ = w.Write([]byte(klineBody(30)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(srv *httptest.Server) *Eastmoney {
	return New(Config{
		QuoteURL:          srv.URL + "/quote",
		HistoryURL:        srv.URL + "/kline",
		RequestsPerSecond: 1000,
		HistoryBars:       30,
	}, nil)
}

func TestSecID(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
		ok     bool
	}{
		{"600519.SH", "1.600519", true},
		{"600519.SS", "1.600519", true},
		{"000001.SZ", "0.000001", true},
		{"000001.sz", "0.000001", true},
		{"AAPL", "", false},
		{"0700.HK", "", false},
		{"ABC.SH", "", false},
		{".SH", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			got, ok := secID(tt.symbol)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetMarketData(t *testing.T) {
	var calls atomic.Int32
	p := newProvider(newServer(t, &calls))

	md, err := p.GetMarketData(context.Background(), "600519.SH")
	require.NoError(t, err)
	require.NotNil(t, md.Price)
	assert.InDelta(t, 1700.5, *md.Price, 1e-9)
	assert.InDelta(t, 20.0, *md.Change, 1e-9)
	assert.InDelta(t, 20.0/1680.5*100, *md.ChangePercent, 1e-9)
	assert.InDelta(t, 2_500_000, *md.Volume, 1e-9)
	assert.InDelta(t, 1900.0, *md.High52Week, 1e-9)
	assert.InDelta(t, 28.4, *md.PE, 1e-9)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), md.Timestamp)
}

func TestGetMarketData_MissingFields(t *testing.T) {
	var calls atomic.Int32
	p := newProvider(newServer(t, &calls))
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	md, err := p.GetMarketData(context.Background(), "000001.SZ")
	require.NoError(t, err)
	assert.Nil(t, md.Volume)
	assert.Nil(t, md.PE)
	assert.Nil(t, md.High52Week)
	assert.Equal(t, fixed, md.Timestamp)
	require.NotNil(t, md.Change)
	assert.InDelta(t, 0.5, *md.Change, 1e-9)
}

func TestGetFundamentals(t *testing.T) {
	var calls atomic.Int32
	p := newProvider(newServer(t, &calls))

	fd, err := p.GetFundamentals(context.Background(), "600519.SH")
	require.NoError(t, err)
	assert.InDelta(t, 0.331, *fd.ROE, 1e-9)
	assert.InDelta(t, 9.4, *fd.PB, 1e-9)
	assert.InDelta(t, 48.2, *fd.EPS, 1e-9)
	assert.InDelta(t, 180.3, *fd.BookValuePerShare, 1e-9)
	assert.Nil(t, fd.DebtToEquity)
}

func TestGetTechnical(t *testing.T) {
	var calls atomic.Int32
	p := newProvider(newServer(t, &calls))

	bars, err := p.History(context.Background(), "600519.SH", "1d")
	require.NoError(t, err)
	require.Len(t, bars, 30)
	assert.Equal(t, "1d", bars[0].Interval)
	assert.InDelta(t, 100.0, bars[0].Close, 1e-9)
	assert.Equal(t, int64(100_000), bars[0].Volume)
	assert.True(t, bars[0].Time.Before(bars[29].Time))

	td, err := p.GetTechnical(context.Background(), "600519.SH", "1d")
	require.NoError(t, err)
	require.NotNil(t, td.SMA20)
	assert.Equal(t, "600519.SH", td.Symbol)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		want   *core.Error
		noCall bool
	}{
		{"foreign symbol skips network", "AAPL", core.ErrSymbolNotFound, true},
		{"unknown code", "688999.SH", core.ErrSymbolNotFound, false},
		{"upstream failure", "000002.SZ", core.ErrProviderFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			p := newProvider(newServer(t, &calls))

			_, err := p.GetMarketData(context.Background(), tt.symbol)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			if tt.noCall {
				assert.Zero(t, calls.Load())
			}
		})
	}
}

func TestHistory_UnknownSymbol(t *testing.T) {
	var calls atomic.Int32
	p := newProvider(newServer(t, &calls))

	_, err := p.GetTechnical(context.Background(), "000001.SZ", "1d")
	assert.True(t, errors.Is(err, core.ErrSymbolNotFound))
}

func TestParseKline(t *testing.T) {
	bar, ok := parseKline("2026-01-05,10.1,10.5,10.8,9.9,1234")
	require.True(t, ok)
	assert.InDelta(t, 10.1, bar.Open, 1e-9)
	assert.InDelta(t, 10.5, bar.Close, 1e-9)
	assert.InDelta(t, 10.8, bar.High, 1e-9)
	assert.InDelta(t, 9.9, bar.Low, 1e-9)
	assert.Equal(t, int64(123_400), bar.Volume)

	_, ok = parseKline("2026-01-05,x,10.5,10.8,9.9,1234")
	assert.False(t, ok)
	_, ok = parseKline("2026-01-05,10.1")
	assert.False(t, ok)
}

func TestKlineType(t *testing.T) {
	for tf, want := range map[string]string{"1d": "101", "": "101", "1h": "60", "1wk": "102", "1mo": "103"} {
		klt, _ := klineType(tf)
		assert.Equal(t, want, klt, tf)
	}
}
