package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/provider"
	"github.com/newthinker/prism/internal/sentiment"
)

// Fetch categories.
const (
	CategoryMarket       = "market"
	CategoryFundamentals = "fundamentals"
	CategoryTechnical    = "technical"
	CategoryNews         = "news"
	CategorySocial       = "social"
)

// Fetch outcomes reported to the Recorder.
const (
	FetchOK       = "ok"
	FetchError    = "error"
	FetchTimeout  = "timeout"
	FetchNotFound = "not_found"
)

// Recorder receives analysis metrics.
type Recorder interface {
	RecordAnalysis(mode, outcome string, duration time.Duration)
	RecordFetch(category, status string)
	RecordConflict(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAnalysis(string, string, time.Duration) {}
func (nopRecorder) RecordFetch(string, string)                   {}
func (nopRecorder) RecordConflict(string)                        {}

// AnalyzerConfig controls fetching around the engine.
type AnalyzerConfig struct {
	Engine         Config
	Aggregator     sentiment.AggregatorConfig
	FetchTimeout   time.Duration
	DaysBack       int
	Timeframe      string
	MaxConcurrency int
}

// DefaultAnalyzerConfig returns production defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Engine:         DefaultConfig(),
		Aggregator:     sentiment.DefaultAggregatorConfig(),
		FetchTimeout:   10 * time.Second,
		DaysBack:       7,
		Timeframe:      "1d",
		MaxConcurrency: 4,
	}
}

// Analyzer fetches a snapshot for a symbol from its providers and scores it.
type Analyzer struct {
	data       provider.DataProvider
	feeds      provider.FeedProvider
	engine     *Engine
	aggregator *sentiment.Aggregator
	cfg        AnalyzerConfig
	logger     *zap.Logger
	recorder   Recorder
	now        func() time.Time
}

// NewAnalyzer creates an analyzer. feeds may be nil, in which case sentiment
// is always neutral.
func NewAnalyzer(data provider.DataProvider, feeds provider.FeedProvider, cfg AnalyzerConfig, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultAnalyzerConfig()
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = def.DaysBack
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = def.Timeframe
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}

	return &Analyzer{
		data:       data,
		feeds:      feeds,
		engine:     NewEngine(cfg.Engine),
		aggregator: sentiment.NewAggregator(sentiment.NewScorer(), cfg.Aggregator),
		cfg:        cfg,
		logger:     logger,
		recorder:   nopRecorder{},
		now:        time.Now,
	}
}

// SetRecorder installs a metrics recorder.
func (a *Analyzer) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	a.recorder = r
}

// SetAggregator replaces the sentiment aggregator.
func (a *Analyzer) SetAggregator(agg *sentiment.Aggregator) {
	if agg != nil {
		a.aggregator = agg
	}
}

// Engine returns the scoring engine.
func (a *Analyzer) Engine() *Engine {
	return a.engine
}

type snapshot struct {
	market       *core.MarketData
	fundamentals *core.FundamentalData
	technical    *core.TechnicalData
	news         []core.NewsItem
	social       []core.SocialPost
	errs         map[string]error
}

// Analyze fetches every category the mode needs concurrently, each under its
// own timeout, and scores the result. A failed category is excluded and
// counted in the result's coverage. The analysis fails with
// core.ErrSymbolNotFound only when the quote lookup does not know the symbol;
// a not-found from fundamentals or technicals alone marks that category
// unavailable.
func (a *Analyzer) Analyze(ctx context.Context, symbol string, mode core.AnalysisType) (*core.AnalysisResult, error) {
	start := a.now()
	symbol = normalize(symbol)
	if mode == "" {
		mode = core.AnalysisComprehensive
	}
	if symbol == "" {
		a.recorder.RecordAnalysis(string(mode), "invalid_symbol", 0)
		return nil, core.WrapError(core.ErrSymbolNotFound, errors.New("empty symbol"))
	}

	categories := []string{CategoryMarket}
	if mode != core.AnalysisTechnical {
		categories = append(categories, CategoryFundamentals)
	}
	if mode != core.AnalysisFundamental {
		categories = append(categories, CategoryTechnical)
	}
	if mode == core.AnalysisComprehensive {
		categories = append(categories, CategoryNews, CategorySocial)
	}

	snap := a.fetch(ctx, symbol, categories)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if unknownSymbol(snap.errs, categories) {
		a.recorder.RecordAnalysis(string(mode), "invalid_symbol", a.now().Sub(start))
		return nil, core.WrapError(core.ErrSymbolNotFound, errors.New(symbol))
	}

	coverage := core.DataCoverage{Requested: len(categories)}
	for _, cat := range categories {
		if err, failed := snap.errs[cat]; failed {
			coverage.Unavailable = append(coverage.Unavailable, cat)
			a.logger.Warn("proceeding without category",
				zap.String("symbol", symbol),
				zap.String("category", cat),
				zap.Error(err),
			)
			continue
		}
		coverage.Succeeded++
	}

	in := Inputs{
		Symbol:       symbol,
		Mode:         mode,
		Market:       snap.market,
		Fundamentals: snap.fundamentals,
		Technical:    snap.technical,
		Coverage:     coverage,
		Now:          a.now(),
	}
	if mode == core.AnalysisComprehensive {
		s := a.aggregator.Aggregate(symbol, snap.news, snap.social, in.Now)
		in.Sentiment = &s
	}

	result, err := a.engine.Score(in)
	if err != nil {
		a.recorder.RecordAnalysis(string(mode), "insufficient_data", a.now().Sub(start))
		return nil, err
	}

	if result.Conflict != nil {
		a.recorder.RecordConflict(string(result.Conflict.Type))
	}
	a.recorder.RecordAnalysis(string(mode), string(result.Recommendation), a.now().Sub(start))
	a.logger.Debug("analysis complete",
		zap.String("symbol", symbol),
		zap.String("mode", string(mode)),
		zap.String("recommendation", string(result.Recommendation)),
		zap.Float64("overall_score", result.OverallScore),
		zap.Float64("confidence", result.Confidence),
	)
	return &result, nil
}

// unknownSymbol reports whether the market category, or every requested
// data category, rejected the symbol as not found.
func unknownSymbol(errs map[string]error, categories []string) bool {
	if errors.Is(errs[CategoryMarket], core.ErrSymbolNotFound) {
		return true
	}
	n := 0
	for _, cat := range categories {
		switch cat {
		case CategoryMarket, CategoryFundamentals, CategoryTechnical:
		default:
			continue
		}
		if !errors.Is(errs[cat], core.ErrSymbolNotFound) {
			return false
		}
		n++
	}
	return n > 0
}

// Outcome is the per-symbol result of AnalyzeMany.
type Outcome struct {
	Symbol string
	Result *core.AnalysisResult
	Err    error
}

// AnalyzeMany analyzes symbols concurrently, at most MaxConcurrency at a
// time. Outcomes are returned in input order.
func (a *Analyzer) AnalyzeMany(ctx context.Context, symbols []string, mode core.AnalysisType) []Outcome {
	outcomes := make([]Outcome, len(symbols))
	sem := make(chan struct{}, a.cfg.MaxConcurrency)
	var wg sync.WaitGroup

	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[i] = Outcome{Symbol: sym, Err: ctx.Err()}
				return
			}
			res, err := a.Analyze(ctx, sym, mode)
			outcomes[i] = Outcome{Symbol: sym, Result: res, Err: err}
		}(i, sym)
	}

	wg.Wait()
	return outcomes
}

// Sentiment fetches news and social items and aggregates them. Feed failures
// degrade to a neutral summary rather than an error.
func (a *Analyzer) Sentiment(ctx context.Context, symbol string) (core.SentimentData, error) {
	symbol = normalize(symbol)
	if symbol == "" {
		return core.SentimentData{}, core.WrapError(core.ErrSymbolNotFound, errors.New("empty symbol"))
	}
	snap := a.fetch(ctx, symbol, []string{CategoryNews, CategorySocial})
	if err := ctx.Err(); err != nil {
		return core.SentimentData{}, err
	}
	return a.aggregator.Aggregate(symbol, snap.news, snap.social, a.now()), nil
}

// fetch runs one goroutine per category. Each goroutine writes only its own
// snapshot field; errors are collected under a mutex.
func (a *Analyzer) fetch(ctx context.Context, symbol string, categories []string) snapshot {
	snap := snapshot{errs: make(map[string]error)}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	fail := func(cat string, err error) {
		mu.Lock()
		snap.errs[cat] = err
		mu.Unlock()
	}

	for _, cat := range categories {
		wg.Add(1)
		go func(cat string) {
			defer wg.Done()
			var err error
			switch cat {
			case CategoryMarket:
				snap.market, err = withTimeout(ctx, a.cfg.FetchTimeout, func(ctx context.Context) (*core.MarketData, error) {
					return a.data.GetMarketData(ctx, symbol)
				})
			case CategoryFundamentals:
				snap.fundamentals, err = withTimeout(ctx, a.cfg.FetchTimeout, func(ctx context.Context) (*core.FundamentalData, error) {
					return a.data.GetFundamentals(ctx, symbol)
				})
			case CategoryTechnical:
				snap.technical, err = withTimeout(ctx, a.cfg.FetchTimeout, func(ctx context.Context) (*core.TechnicalData, error) {
					return a.data.GetTechnical(ctx, symbol, a.cfg.Timeframe)
				})
			case CategoryNews:
				if a.feeds == nil {
					err = core.WrapError(core.ErrProviderFailed, errors.New("no feed provider configured"))
					break
				}
				snap.news, err = withTimeout(ctx, a.cfg.FetchTimeout, func(ctx context.Context) ([]core.NewsItem, error) {
					return a.feeds.GetNews(ctx, symbol, a.cfg.DaysBack)
				})
			case CategorySocial:
				if a.feeds == nil {
					err = core.WrapError(core.ErrProviderFailed, errors.New("no feed provider configured"))
					break
				}
				snap.social, err = withTimeout(ctx, a.cfg.FetchTimeout, func(ctx context.Context) ([]core.SocialPost, error) {
					return a.feeds.GetSocial(ctx, symbol, a.cfg.DaysBack)
				})
			}

			a.recorder.RecordFetch(cat, fetchStatus(err))
			if err != nil {
				fail(cat, err)
			}
		}(cat)
	}

	wg.Wait()

	// A nil snapshot with no error still leaves the category unusable.
	for cat, missing := range map[string]bool{
		CategoryMarket:       snap.market == nil,
		CategoryFundamentals: snap.fundamentals == nil,
		CategoryTechnical:    snap.technical == nil,
	} {
		if !missing || !contains(categories, cat) {
			continue
		}
		if _, failed := snap.errs[cat]; !failed {
			snap.errs[cat] = core.ErrNoData
		}
	}
	return snap
}

// withTimeout runs fn under its own deadline and abandons it when the
// deadline passes, even if fn ignores its context.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, core.WrapError(core.ErrProviderTimeout, ctx.Err())
		}
		return zero, ctx.Err()
	}
}

func fetchStatus(err error) string {
	switch {
	case err == nil:
		return FetchOK
	case errors.Is(err, core.ErrSymbolNotFound):
		return FetchNotFound
	case errors.Is(err, core.ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		return FetchTimeout
	}
	return FetchError
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
