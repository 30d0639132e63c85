// Package app runs the watchlist: scheduled analysis cycles that persist,
// archive, alert on and route every result.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/alert"
	"github.com/newthinker/prism/internal/analysis"
	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/notifier"
	"github.com/newthinker/prism/internal/router"
	"github.com/newthinker/prism/internal/storage/archive"
	"github.com/newthinker/prism/internal/storage/assessment"
)

// WatchlistItem is one monitored symbol.
type WatchlistItem struct {
	Symbol string            `json:"symbol"`
	Name   string            `json:"name"`
	Market core.Market       `json:"market"`
	Mode   core.AnalysisType `json:"mode"`
}

// Recorder receives cycle-level metrics.
type Recorder interface {
	RecordCycle(outcome string, duration time.Duration)
	RecordAlert(rule, severity string)
	SetWatchlistSize(size int)
}

type nopRecorder struct{}

func (nopRecorder) RecordCycle(string, time.Duration) {}
func (nopRecorder) RecordAlert(string, string)        {}
func (nopRecorder) SetWatchlistSize(int)              {}

// CycleReport summarizes one watchlist cycle.
type CycleReport struct {
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Symbols   int               `json:"symbols"`
	Analyzed  int               `json:"analyzed"`
	Failed    map[string]string `json:"failed,omitempty"`
	Routed    int               `json:"routed"`
	Alerts    int               `json:"alerts"`
	Archived  int               `json:"archived"`
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule checks a cron expression or descriptor such as "@every 15m".
func ValidateSchedule(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("schedule %q: %w", spec, err))
	}
	return nil
}

type job struct {
	spec string
	name string
	fn   func(context.Context)
}

// App is the main application orchestrator
type App struct {
	logger      *zap.Logger
	analyzer    *analysis.Analyzer
	results     assessment.Store
	archiver    *archive.Archiver
	notifiers   *notifier.Registry
	router      *router.Router
	alerts      *alert.Evaluator
	recorder    Recorder
	defaultMode core.AnalysisType

	schedule  string
	retention time.Duration
	jobs      []job

	watchlistItems []WatchlistItem
	watchlistSet   map[string]struct{}

	mu        sync.RWMutex
	cycleMu   sync.Mutex
	running   bool
	cancel    context.CancelFunc
	cycles    int
	lastCycle *CycleReport
	now       func() time.Time
}

// New creates a new App instance. results is required; everything else is
// optional and installed with the Set/Register methods.
func New(analyzer *analysis.Analyzer, results assessment.Store, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	notifiers := notifier.NewRegistry()
	return &App{
		logger:         logger,
		analyzer:       analyzer,
		results:        results,
		notifiers:      notifiers,
		router:         router.New(router.DefaultConfig(), notifiers, logger),
		recorder:       nopRecorder{},
		defaultMode:    core.AnalysisComprehensive,
		watchlistItems: []WatchlistItem{},
		watchlistSet:   make(map[string]struct{}),
		now:            time.Now,
	}
}

// RegisterNotifier adds a notifier used for routed results.
func (a *App) RegisterNotifier(n notifier.Notifier) error {
	return a.notifiers.Register(n)
}

// Notifiers returns the notifier registry.
func (a *App) Notifiers() *notifier.Registry {
	return a.notifiers
}

// SetRouterConfig replaces the router, dropping any cooldowns.
func (a *App) SetRouterConfig(cfg router.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.router = router.New(cfg, a.notifiers, a.logger)
	if rr, ok := a.recorder.(router.Recorder); ok {
		a.router.SetRecorder(rr)
	}
}

// SetArchiver enables snapshot archiving. retention > 0 prunes older
// snapshots daily.
func (a *App) SetArchiver(ar *archive.Archiver, retention time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archiver = ar
	a.retention = retention
}

// SetAlerts installs an alert evaluator.
func (a *App) SetAlerts(e *alert.Evaluator) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = e
}

// SetRecorder installs a metrics recorder. A recorder that also satisfies
// analysis.Recorder or router.Recorder is handed to the analyzer and router.
func (a *App) SetRecorder(r Recorder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r == nil {
		r = nopRecorder{}
	}
	a.recorder = r
	if ar, ok := r.(analysis.Recorder); ok {
		a.analyzer.SetRecorder(ar)
	}
	if rr, ok := r.(router.Recorder); ok {
		a.router.SetRecorder(rr)
	}
	r.SetWatchlistSize(len(a.watchlistItems))
}

// SetDefaultMode sets the mode used for items without one.
func (a *App) SetDefaultMode(mode core.AnalysisType) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if mode != "" {
		a.defaultMode = mode
	}
}

// SetSchedule sets the cron spec for watchlist cycles. Empty disables them.
func (a *App) SetSchedule(spec string) error {
	if spec != "" {
		if err := ValidateSchedule(spec); err != nil {
			return err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.schedule = spec
	return nil
}

// AddJob schedules an extra periodic task to run while the app is started.
func (a *App) AddJob(spec, name string, fn func(context.Context)) error {
	if err := ValidateSchedule(spec); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs = append(a.jobs, job{spec: spec, name: name, fn: fn})
	return nil
}

// SetWatchlist replaces the watchlist. Duplicate symbols keep the first entry.
func (a *App) SetWatchlist(items []WatchlistItem) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.watchlistItems = make([]WatchlistItem, 0, len(items))
	a.watchlistSet = make(map[string]struct{}, len(items))
	for _, it := range items {
		it = normalizeItem(it)
		if it.Symbol == "" {
			continue
		}
		if _, dup := a.watchlistSet[it.Symbol]; dup {
			continue
		}
		a.watchlistSet[it.Symbol] = struct{}{}
		a.watchlistItems = append(a.watchlistItems, it)
	}
	a.recorder.SetWatchlistSize(len(a.watchlistItems))
}

// Start runs scheduled cycles until ctx is cancelled or Stop is called.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	schedule := a.schedule
	jobs := append([]job(nil), a.jobs...)
	retention := a.retention
	hasArchive := a.archiver != nil
	a.mu.Unlock()

	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(cronLogger{a.logger}),
		cron.WithChain(cron.Recover(cronLogger{a.logger}), cron.SkipIfStillRunning(cronLogger{a.logger})),
	)
	if schedule != "" {
		if _, err := c.AddFunc(schedule, func() { a.RunOnce(ctx) }); err != nil {
			a.stopped()
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	jobs = append(jobs, job{spec: "@every 1h", name: "router-cooldowns", fn: func(context.Context) {
		a.mu.RLock()
		r := a.router
		a.mu.RUnlock()
		r.CleanupExpiredCooldowns()
	}})
	if hasArchive && retention > 0 {
		jobs = append(jobs, job{spec: "@daily", name: "archive-prune", fn: func(ctx context.Context) {
			a.pruneArchive(ctx, retention)
		}})
	}
	for _, j := range jobs {
		j := j
		if _, err := c.AddFunc(j.spec, func() { j.fn(ctx) }); err != nil {
			a.stopped()
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("job %s: %w", j.name, err))
		}
	}

	a.logger.Info("PRISM starting",
		zap.Int("watchlist_count", len(a.GetWatchlist())),
		zap.String("schedule", schedule),
		zap.Int("jobs", len(jobs)),
	)

	c.Start()
	if schedule != "" {
		// Initial run
		go a.RunOnce(ctx)
	}

	<-ctx.Done()
	a.logger.Info("PRISM shutting down")
	<-c.Stop().Done()
	a.stopped()
	return ctx.Err()
}

func (a *App) stopped() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// Stop stops the scheduler.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// Analyze runs one ad-hoc analysis and persists it. Unlike a cycle it does
// not route or alert.
func (a *App) Analyze(ctx context.Context, symbol string, mode core.AnalysisType) (*core.AnalysisResult, error) {
	if mode == "" {
		mode = a.mode("")
	}
	result, err := a.analyzer.Analyze(ctx, symbol, mode)
	if err != nil {
		return nil, err
	}
	a.persist(ctx, result)
	return result, nil
}

// AnalyzeMany runs ad-hoc analyses concurrently and persists the successes.
func (a *App) AnalyzeMany(ctx context.Context, symbols []string, mode core.AnalysisType) []analysis.Outcome {
	if mode == "" {
		mode = a.mode("")
	}
	outcomes := a.analyzer.AnalyzeMany(ctx, symbols, mode)
	for _, o := range outcomes {
		if o.Err == nil {
			a.persist(ctx, o.Result)
		}
	}
	return outcomes
}

// Sentiment aggregates fresh sentiment for a symbol.
func (a *App) Sentiment(ctx context.Context, symbol string) (core.SentimentData, error) {
	return a.analyzer.Sentiment(ctx, symbol)
}

// Results returns the result store.
func (a *App) Results() assessment.Store {
	return a.results
}

// persist saves and archives a result. It returns whether the archive write
// succeeded.
func (a *App) persist(ctx context.Context, result *core.AnalysisResult) bool {
	if err := a.results.Save(ctx, result); err != nil {
		a.logger.Error("failed to save result", zap.String("symbol", result.Symbol), zap.Error(err))
		return false
	}
	a.mu.RLock()
	ar := a.archiver
	a.mu.RUnlock()
	if ar == nil {
		return false
	}
	if _, err := ar.Archive(ctx, result); err != nil {
		a.logger.Warn("failed to archive result", zap.String("symbol", result.Symbol), zap.Error(err))
		return false
	}
	return true
}

// RunOnce performs a single watchlist cycle. Concurrent calls are serialized.
func (a *App) RunOnce(ctx context.Context) CycleReport {
	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()

	start := a.now()
	items := a.GetWatchlistItems()
	report := CycleReport{StartedAt: start, Symbols: len(items), Failed: map[string]string{}}

	if len(items) == 0 {
		a.logger.Debug("no symbols in watchlist")
		a.finishCycle(&report, "empty")
		return report
	}

	a.logger.Debug("starting analysis cycle", zap.Int("symbols", len(items)))

	// One batch per mode so AnalyzeMany bounds concurrency across symbols.
	byMode := make(map[core.AnalysisType][]string)
	var modes []core.AnalysisType
	for _, it := range items {
		m := a.mode(it.Mode)
		if _, ok := byMode[m]; !ok {
			modes = append(modes, m)
		}
		byMode[m] = append(byMode[m], it.Symbol)
	}

	var results []core.AnalysisResult
	for _, m := range modes {
		for _, o := range a.analyzer.AnalyzeMany(ctx, byMode[m], m) {
			if o.Err != nil {
				report.Failed[o.Symbol] = errorCode(o.Err)
				lvl := a.logger.Warn
				if errors.Is(o.Err, core.ErrSymbolNotFound) {
					lvl = a.logger.Info
				}
				lvl("analysis failed", zap.String("symbol", o.Symbol), zap.Error(o.Err))
				continue
			}
			report.Analyzed++
			if a.persist(ctx, o.Result) {
				report.Archived++
			}
			results = append(results, *o.Result)
		}
	}

	if ctx.Err() != nil {
		a.finishCycle(&report, "cancelled")
		return report
	}

	a.mu.RLock()
	evaluator, r, rec := a.alerts, a.router, a.recorder
	a.mu.RUnlock()

	if evaluator != nil {
		for _, res := range results {
			for _, fired := range evaluator.Observe(ctx, res) {
				report.Alerts++
				rec.RecordAlert(fired.Rule, fired.Severity)
			}
		}
	}
	report.Routed = r.RouteBatch(ctx, results)

	outcome := "ok"
	if report.Analyzed == 0 {
		outcome = "failed"
	} else if len(report.Failed) > 0 {
		outcome = "partial"
	}
	a.finishCycle(&report, outcome)

	a.logger.Info("analysis cycle complete",
		zap.Int("symbols", report.Symbols),
		zap.Int("analyzed", report.Analyzed),
		zap.Int("failed", len(report.Failed)),
		zap.Int("routed", report.Routed),
		zap.Int("alerts", report.Alerts),
		zap.Duration("duration", report.Duration),
	)
	return report
}

func (a *App) finishCycle(report *CycleReport, outcome string) {
	report.Duration = a.now().Sub(report.StartedAt)
	a.mu.Lock()
	a.cycles++
	last := *report
	a.lastCycle = &last
	rec := a.recorder
	a.mu.Unlock()
	rec.RecordCycle(outcome, report.Duration)
}

func (a *App) pruneArchive(ctx context.Context, retention time.Duration) {
	a.mu.RLock()
	ar := a.archiver
	a.mu.RUnlock()
	if ar == nil {
		return
	}
	n, err := ar.Prune(ctx, a.now().Add(-retention))
	if err != nil {
		a.logger.Warn("archive prune failed", zap.Error(err))
		return
	}
	a.logger.Info("archive pruned", zap.Int("removed", n))
}

func (a *App) mode(m core.AnalysisType) core.AnalysisType {
	if m != "" {
		return m
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.defaultMode
}

// LastCycle returns the most recent cycle report, if any.
func (a *App) LastCycle() (CycleReport, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lastCycle == nil {
		return CycleReport{}, false
	}
	return *a.lastCycle, true
}

// GetStats returns application statistics
func (a *App) GetStats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := map[string]any{
		"running":      a.running,
		"watchlist":    len(a.watchlistItems),
		"schedule":     a.schedule,
		"cycles":       a.cycles,
		"notifiers":    a.notifiers.Len(),
		"router":       a.router.GetStats(),
		"archive":      a.archiver != nil,
		"default_mode": a.defaultMode,
	}
	if n, err := a.results.Count(context.Background(), assessment.ListFilter{}); err == nil {
		stats["results"] = n
	}
	if a.alerts != nil {
		stats["alert_rules"] = len(a.alerts.Rules())
		stats["recent_alerts"] = len(a.alerts.Recent(0))
	}
	if a.lastCycle != nil {
		stats["last_cycle"] = *a.lastCycle
	}
	return stats
}

// RecentAlerts returns up to limit recently fired alerts, newest first.
func (a *App) RecentAlerts(limit int) []alert.Alert {
	a.mu.RLock()
	e := a.alerts
	a.mu.RUnlock()
	if e == nil {
		return nil
	}
	return e.Recent(limit)
}

// GetWatchlist returns the current watchlist symbols.
func (a *App) GetWatchlist() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	result := make([]string, len(a.watchlistItems))
	for i, item := range a.watchlistItems {
		result[i] = item.Symbol
	}
	return result
}

// GetWatchlistItems returns the full watchlist items with metadata.
func (a *App) GetWatchlistItems() []WatchlistItem {
	a.mu.RLock()
	defer a.mu.RUnlock()
	result := make([]WatchlistItem, len(a.watchlistItems))
	copy(result, a.watchlistItems)
	return result
}

// AddToWatchlist adds or updates a symbol. It reports whether the symbol
// was new.
func (a *App) AddToWatchlist(item WatchlistItem) (WatchlistItem, bool) {
	item = normalizeItem(item)
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.watchlistSet[item.Symbol]; exists {
		for i := range a.watchlistItems {
			if a.watchlistItems[i].Symbol == item.Symbol {
				a.watchlistItems[i] = item
			}
		}
		return item, false
	}
	a.watchlistSet[item.Symbol] = struct{}{}
	a.watchlistItems = append(a.watchlistItems, item)
	a.recorder.SetWatchlistSize(len(a.watchlistItems))
	return item, true
}

// RemoveFromWatchlist removes a symbol from the watchlist.
func (a *App) RemoveFromWatchlist(symbol string) bool {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.watchlistSet[symbol]; !exists {
		return false
	}
	delete(a.watchlistSet, symbol)
	for i, item := range a.watchlistItems {
		if item.Symbol == symbol {
			a.watchlistItems = append(a.watchlistItems[:i], a.watchlistItems[i+1:]...)
			break
		}
	}
	a.recorder.SetWatchlistSize(len(a.watchlistItems))
	return true
}

func normalizeItem(it WatchlistItem) WatchlistItem {
	it.Symbol = strings.ToUpper(strings.TrimSpace(it.Symbol))
	if it.Name == "" {
		it.Name = it.Symbol
	}
	if it.Market == "" {
		it.Market = DetectMarket(it.Symbol)
	}
	return it
}

// DetectMarket infers the listing market from the symbol suffix.
func DetectMarket(symbol string) core.Market {
	upper := strings.ToUpper(symbol)
	switch {
	case strings.HasSuffix(upper, ".SH"), strings.HasSuffix(upper, ".SZ"), strings.HasSuffix(upper, ".SS"):
		return core.MarketCNA
	case strings.HasSuffix(upper, ".HK"):
		return core.MarketHK
	case strings.HasSuffix(upper, ".DE"), strings.HasSuffix(upper, ".PA"),
		strings.HasSuffix(upper, ".AS"), strings.HasSuffix(upper, ".L"):
		return core.MarketEU
	default:
		return core.MarketUS
	}
}

func errorCode(err error) string {
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "CANCELLED"
	}
	return "INTERNAL_ERROR"
}

// SortedFailures lists failed symbols in order, for stable output.
func (r CycleReport) SortedFailures() []string {
	out := make([]string, 0, len(r.Failed))
	for sym := range r.Failed {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, zap.Error(err), zap.Any("details", keysAndValues))
}
