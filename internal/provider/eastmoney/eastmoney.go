// Package eastmoney implements provider.DataProvider for China A-shares
// over the Eastmoney push2 quote and kline endpoints.
package eastmoney

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/indicator"
)

const (
	defaultQuoteURL   = "https://push2.eastmoney.com/api/qt/stock/get"
	defaultHistoryURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"

	// f43 price, f44 high, f45 low, f46 open, f47 volume (lots), f55 EPS,
	// f57 code, f58 name, f60 previous close, f86 update time, f92 book
	// value per share, f116 market cap, f162 PE, f167 PB, f173 ROE (%),
	// f174/f175 52-week high/low.
	quoteFields = "f43,f44,f45,f46,f47,f55,f57,f58,f60,f86,f92,f116,f162,f167,f173,f174,f175"

	sharesPerLot = 100
)

// Config configures the Eastmoney provider.
type Config struct {
	QuoteURL          string
	HistoryURL        string
	RequestsPerSecond float64
	Timeout           time.Duration
	HistoryBars       int
}

// Eastmoney fetches A-share quotes, valuation ratios and daily klines.
// Symbols outside Shanghai and Shenzhen are reported as not found so a
// registry falls through to the next provider.
type Eastmoney struct {
	client  *http.Client
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an Eastmoney provider.
func New(cfg Config, logger *zap.Logger) *Eastmoney {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QuoteURL == "" {
		cfg.QuoteURL = defaultQuoteURL
	}
	if cfg.HistoryURL == "" {
		cfg.HistoryURL = defaultHistoryURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HistoryBars <= 0 {
		cfg.HistoryBars = 250
	}
	return &Eastmoney{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger,
		now:     time.Now,
	}
}

func (e *Eastmoney) Name() string {
	return "eastmoney"
}

// secID converts 600519.SH to 1.600519 (Shanghai = 1, Shenzhen = 0).
func secID(symbol string) (string, bool) {
	code, exchange, ok := strings.Cut(strings.ToUpper(symbol), ".")
	if !ok || code == "" {
		return "", false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	switch exchange {
	case "SH", "SS":
		return "1." + code, true
	case "SZ":
		return "0." + code, true
	}
	return "", false
}

// GetMarketData implements provider.DataProvider.
func (e *Eastmoney) GetMarketData(ctx context.Context, symbol string) (*core.MarketData, error) {
	q, err := e.quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	md := &core.MarketData{
		Symbol:     symbol,
		Price:      q.Price.ptr(),
		High52Week: q.High52.ptr(),
		Low52Week:  q.Low52.ptr(),
		MarketCap:  q.MarketCap.ptr(),
		PE:         q.PE.ptr(),
		Timestamp:  e.now().UTC(),
	}
	if q.Updated > 0 {
		md.Timestamp = time.Unix(q.Updated, 0).UTC()
	}
	if q.Volume.valid() {
		md.Volume = core.Float(q.Volume.v * sharesPerLot)
	}
	if q.Price.valid() && q.PrevClose.valid() && q.PrevClose.v > 0 {
		change := q.Price.v - q.PrevClose.v
		md.Change = core.Float(change)
		md.ChangePercent = core.Float(change / q.PrevClose.v * 100)
	}
	return md, nil
}

// GetFundamentals implements provider.DataProvider. Eastmoney reports ROE
// in percent; it is returned as a fraction.
func (e *Eastmoney) GetFundamentals(ctx context.Context, symbol string) (*core.FundamentalData, error) {
	q, err := e.quote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	fd := &core.FundamentalData{
		Symbol:            symbol,
		PE:                q.PE.ptr(),
		PB:                q.PB.ptr(),
		EPS:               q.EPS.ptr(),
		BookValuePerShare: q.BVPS.ptr(),
		LastUpdated:       e.now().UTC(),
	}
	if q.ROE.valid() {
		fd.ROE = core.Float(q.ROE.v / 100)
	}
	return fd, nil
}

// GetTechnical implements provider.DataProvider from daily klines.
func (e *Eastmoney) GetTechnical(ctx context.Context, symbol, timeframe string) (*core.TechnicalData, error) {
	bars, err := e.History(ctx, symbol, timeframe)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, core.ErrNoData
	}
	td := indicator.Snapshot(symbol, timeframe, bars)
	return &td, nil
}

// History returns up to HistoryBars forward-adjusted bars, oldest first.
// Malformed kline rows are skipped.
func (e *Eastmoney) History(ctx context.Context, symbol, timeframe string) ([]core.OHLCV, error) {
	id, ok := secID(symbol)
	if !ok {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("not an A-share symbol: %s", symbol))
	}
	klt, interval := klineType(timeframe)

	params := url.Values{}
	params.Set("secid", id)
	params.Set("klt", klt)
	params.Set("fqt", "1")
	params.Set("end", "20500101")
	params.Set("lmt", strconv.Itoa(e.cfg.HistoryBars))
	params.Set("fields1", "f1,f2,f3,f4,f5,f6")
	params.Set("fields2", "f51,f52,f53,f54,f55,f56")

	var resp historyResponse
	if err := e.getJSON(ctx, e.cfg.HistoryURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no history for symbol: %s", symbol))
	}

	bars := make([]core.OHLCV, 0, len(resp.Data.Klines))
	for _, line := range resp.Data.Klines {
		bar, ok := parseKline(line)
		if !ok {
			continue
		}
		bar.Symbol = symbol
		bar.Interval = interval
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseKline parses "date,open,close,high,low,volume".
func parseKline(line string) (core.OHLCV, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 6 {
		return core.OHLCV{}, false
	}
	t, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		t, err = time.Parse("2006-01-02 15:04", parts[0])
		if err != nil {
			return core.OHLCV{}, false
		}
	}
	var vals [4]float64
	for i := range vals {
		v, err := strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return core.OHLCV{}, false
		}
		vals[i] = v
	}
	vol, err := strconv.ParseFloat(parts[5], 64)
	if err != nil {
		return core.OHLCV{}, false
	}
	return core.OHLCV{
		Open:   vals[0],
		Close:  vals[1],
		High:   vals[2],
		Low:    vals[3],
		Volume: int64(vol * sharesPerLot),
		Time:   t.UTC(),
	}, true
}

func klineType(timeframe string) (klt, interval string) {
	switch timeframe {
	case "1h":
		return "60", "1h"
	case "1wk":
		return "102", "1wk"
	case "1mo":
		return "103", "1mo"
	}
	return "101", "1d"
}

func (e *Eastmoney) quote(ctx context.Context, symbol string) (*quoteData, error) {
	id, ok := secID(symbol)
	if !ok {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("not an A-share symbol: %s", symbol))
	}

	params := url.Values{}
	params.Set("secid", id)
	params.Set("fltt", "2")
	params.Set("fields", quoteFields)

	e.logger.Debug("fetching quote", zap.String("symbol", symbol), zap.String("secid", id))

	var resp quoteResponse
	if err := e.getJSON(ctx, e.cfg.QuoteURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil || !resp.Data.Price.valid() {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no data for symbol: %s", symbol))
	}
	return resp.Data, nil
}

func (e *Eastmoney) getJSON(ctx context.Context, u string, v any) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "prism/1.0")
	req.Header.Set("Referer", "https://quote.eastmoney.com/")

	resp, err := e.client.Do(req)
	if err != nil {
		return core.WrapError(core.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.WrapError(core.ErrProviderFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return core.WrapError(core.ErrProviderFailed, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// value is a numeric field that Eastmoney renders as "-" when absent.
type value struct {
	v  float64
	ok bool
}

func (x *value) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "-" || string(b) == "null" {
		*x = value{}
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*x = value{}
		return nil
	}
	*x = value{v: f, ok: true}
	return nil
}

func (x value) valid() bool { return x.ok }

func (x value) ptr() *float64 {
	if !x.ok {
		return nil
	}
	return core.Float(x.v)
}

type quoteResponse struct {
	Data *quoteData `json:"data"`
}

type quoteData struct {
	Price     value  `json:"f43"`
	High      value  `json:"f44"`
	Low       value  `json:"f45"`
	Open      value  `json:"f46"`
	Volume    value  `json:"f47"`
	EPS       value  `json:"f55"`
	Code      string `json:"f57"`
	Name      string `json:"f58"`
	PrevClose value  `json:"f60"`
	Updated   int64  `json:"f86"`
	BVPS      value  `json:"f92"`
	MarketCap value  `json:"f116"`
	PE        value  `json:"f162"`
	PB        value  `json:"f167"`
	ROE       value  `json:"f173"`
	High52    value  `json:"f174"`
	Low52     value  `json:"f175"`
}

type historyResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}
