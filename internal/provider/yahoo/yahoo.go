// Package yahoo implements provider.DataProvider over the Yahoo Finance
// chart and quoteSummary endpoints.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/indicator"
)

const (
	defaultChartURL   = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultSummaryURL = "https://query2.finance.yahoo.com/v10/finance/quoteSummary"
	summaryModules    = "financialData,defaultKeyStatistics,summaryDetail"
)

// validSymbol matches stock symbols like AAPL, MSFT, 600519.SH, 0700.HK
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("symbol cannot be empty"))
	}
	if !validSymbol.MatchString(symbol) {
		return core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("invalid symbol format: %s", symbol))
	}
	return nil
}

// Config configures the Yahoo provider.
type Config struct {
	ChartURL          string
	SummaryURL        string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	HistoryRange      string // chart range used for indicators, e.g. "1y"
}

// Yahoo fetches quotes, fundamentals and price history.
type Yahoo struct {
	client  *http.Client
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a Yahoo provider.
func New(cfg Config, logger *zap.Logger) *Yahoo {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChartURL == "" {
		cfg.ChartURL = defaultChartURL
	}
	if cfg.SummaryURL == "" {
		cfg.SummaryURL = defaultSummaryURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HistoryRange == "" {
		cfg.HistoryRange = "1y"
	}

	return &Yahoo{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
	}
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts internal symbol format to Yahoo format
func toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

func detectMarket(symbol string) core.Market {
	switch {
	case strings.HasSuffix(symbol, ".HK"):
		return core.MarketHK
	case strings.HasSuffix(symbol, ".SH"), strings.HasSuffix(symbol, ".SZ"):
		return core.MarketCNA
	}
	return core.MarketUS
}

// GetMarketData implements provider.DataProvider.
func (y *Yahoo) GetMarketData(ctx context.Context, symbol string) (*core.MarketData, error) {
	r, err := y.chart(ctx, symbol, "5d", "1d")
	if err != nil {
		return nil, err
	}
	meta := r.Meta

	md := &core.MarketData{
		Symbol:     symbol,
		Price:      positive(meta.RegularMarketPrice),
		High52Week: positive(meta.FiftyTwoWeekHigh),
		Low52Week:  positive(meta.FiftyTwoWeekLow),
		Timestamp:  time.Unix(meta.RegularMarketTime, 0).UTC(),
	}
	if meta.RegularMarketVolume > 0 {
		md.Volume = core.Float(float64(meta.RegularMarketVolume))
	}
	if meta.RegularMarketPrice > 0 && meta.ChartPreviousClose > 0 {
		change := meta.RegularMarketPrice - meta.ChartPreviousClose
		md.Change = core.Float(change)
		md.ChangePercent = core.Float(change / meta.ChartPreviousClose * 100)
	}
	return md, nil
}

// GetTechnical implements provider.DataProvider by computing indicators
// over the configured history range.
func (y *Yahoo) GetTechnical(ctx context.Context, symbol, timeframe string) (*core.TechnicalData, error) {
	bars, err := y.History(ctx, symbol, timeframe)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, core.ErrNoData
	}
	td := indicator.Snapshot(symbol, timeframe, bars)
	return &td, nil
}

// History returns OHLCV bars in ascending time order. Bars with missing
// fields are skipped.
func (y *Yahoo) History(ctx context.Context, symbol, timeframe string) ([]core.OHLCV, error) {
	interval := toYahooInterval(timeframe)
	r, err := y.chart(ctx, symbol, y.cfg.HistoryRange, interval)
	if err != nil {
		return nil, err
	}
	if len(r.Indicators.Quote) == 0 {
		return nil, core.ErrNoData
	}

	q := r.Indicators.Quote[0]
	bars := make([]core.OHLCV, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(q.Close) || i >= len(q.Open) || i >= len(q.High) || i >= len(q.Low) {
			break
		}
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}
		bar := core.OHLCV{
			Symbol:   symbol,
			Interval: interval,
			Open:     *q.Open[i],
			High:     *q.High[i],
			Low:      *q.Low[i],
			Close:    *q.Close[i],
			Time:     time.Unix(ts, 0).UTC(),
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			bar.Volume = *q.Volume[i]
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func toYahooInterval(timeframe string) string {
	switch timeframe {
	case "1h", "1wk", "1mo":
		return timeframe
	}
	return "1d"
}

func (y *Yahoo) chart(ctx context.Context, symbol, rng, interval string) (*chartResult, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/%s?range=%s&interval=%s", y.cfg.ChartURL, url.PathEscape(toYahooSymbol(symbol)), rng, interval)
	y.logger.Debug("fetching chart",
		zap.String("symbol", symbol),
		zap.String("market", string(detectMarket(symbol))),
		zap.String("range", rng),
	)

	var result chartResponse
	if err := y.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}
	if result.Chart.Error != nil {
		if strings.EqualFold(result.Chart.Error.Code, "Not Found") {
			return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("%s", result.Chart.Error.Description))
		}
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}
	if len(result.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no data for symbol: %s", symbol))
	}
	return &result.Chart.Result[0], nil
}

// getJSON performs a rate-limited GET and decodes the body into v.
func (y *Yahoo) getJSON(ctx context.Context, u string, v any) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "prism/1.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return core.WrapError(core.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return core.ErrSymbolNotFound
	case resp.StatusCode != http.StatusOK:
		return core.WrapError(core.ErrProviderFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return core.WrapError(core.ErrProviderFailed, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func positive(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return core.Float(v)
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol              string  `json:"symbol"`
	RegularMarketPrice  float64 `json:"regularMarketPrice"`
	ChartPreviousClose  float64 `json:"chartPreviousClose"`
	RegularMarketVolume int64   `json:"regularMarketVolume"`
	RegularMarketTime   int64   `json:"regularMarketTime"`
	FiftyTwoWeekHigh    float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow     float64 `json:"fiftyTwoWeekLow"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
