package alert

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/core"
)

// Notifier receives fired alert messages.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg string) error
}

// Alert is one firing of a rule for a symbol.
type Alert struct {
	Rule     string    `json:"rule"`
	Symbol   string    `json:"symbol"`
	Severity string    `json:"severity"`
	Value    float64   `json:"value"`
	Message  string    `json:"message"`
	FiredAt  time.Time `json:"fired_at"`
}

const historySize = 100

// Evaluator tracks rule state per (rule, symbol) and sends notifications.
// A rule with For > 0 must hold on successive observations spanning that
// duration before it fires. After firing, the pair is silent for the
// cooldown.
type Evaluator struct {
	rules     []Rule
	notifiers []Notifier
	cooldown  time.Duration
	logger    *zap.Logger

	// pending holds when each (rule, symbol) started holding
	pending map[string]time.Time
	// lastFired holds the last firing time per (rule, symbol)
	lastFired map[string]time.Time
	history   []Alert

	now func() time.Time

	mu sync.Mutex
}

// NewEvaluator creates a new alert evaluator. Invalid rules are logged and
// skipped.
func NewEvaluator(rules []Rule, notifiers []Notifier, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	valid := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			logger.Warn("skipping alert rule", zap.Error(err))
			continue
		}
		valid = append(valid, r)
	}
	return &Evaluator{
		rules:     valid,
		notifiers: notifiers,
		cooldown:  5 * time.Minute,
		logger:    logger,
		pending:   make(map[string]time.Time),
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}
}

// SetCooldown sets the cooldown duration between alerts.
func (e *Evaluator) SetCooldown(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooldown = d
}

// Rules returns the active rules.
func (e *Evaluator) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Observe evaluates every rule against result and returns the alerts that
// fired.
func (e *Evaluator) Observe(ctx context.Context, result core.AnalysisResult) []Alert {
	return e.Evaluate(ctx, result.Symbol, Metrics(result))
}

// Evaluate evaluates every rule for symbol against metrics.
func (e *Evaluator) Evaluate(ctx context.Context, symbol string, metrics map[string]float64) []Alert {
	symbol = strings.ToUpper(symbol)

	e.mu.Lock()
	var fired []Alert
	for _, rule := range e.rules {
		if !rule.AppliesTo(symbol) {
			continue
		}
		if a, ok := e.evaluateLocked(rule, symbol, metrics); ok {
			fired = append(fired, a)
		}
	}
	e.mu.Unlock()

	for _, a := range fired {
		e.send(ctx, a)
	}
	return fired
}

func (e *Evaluator) evaluateLocked(rule Rule, symbol string, metrics map[string]float64) (Alert, bool) {
	key := rule.Name + "|" + symbol
	now := e.now()

	if !rule.Evaluate(metrics) {
		delete(e.pending, key)
		return Alert{}, false
	}

	if rule.For > 0 {
		since, isPending := e.pending[key]
		if !isPending {
			e.pending[key] = now
			return Alert{}, false
		}
		if now.Sub(since) < rule.For {
			return Alert{}, false
		}
	}

	if last, ok := e.lastFired[key]; ok && now.Sub(last) < e.cooldown {
		return Alert{}, false
	}

	cond, _ := ParseExpr(rule.Expr)
	a := Alert{
		Rule:     rule.Name,
		Symbol:   symbol,
		Severity: rule.Severity,
		Value:    metrics[cond.Metric],
		Message:  rule.FormatMessage(symbol, metrics),
		FiredAt:  now,
	}
	e.lastFired[key] = now
	delete(e.pending, key)

	e.history = append(e.history, a)
	if len(e.history) > historySize {
		e.history = e.history[len(e.history)-historySize:]
	}
	return a, true
}

func (e *Evaluator) send(ctx context.Context, a Alert) {
	e.logger.Info("alert fired",
		zap.String("rule", a.Rule),
		zap.String("symbol", a.Symbol),
		zap.Float64("value", a.Value),
	)
	for _, n := range e.notifiers {
		if err := n.Notify(ctx, a.Message); err != nil {
			e.logger.Error("alert notification failed",
				zap.String("notifier", n.Name()),
				zap.String("rule", a.Rule),
				zap.Error(err),
			)
		}
	}
}

// Recent returns fired alerts, newest first.
func (e *Evaluator) Recent(limit int) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 || limit > len(e.history) {
		limit = len(e.history)
	}
	out := make([]Alert, 0, limit)
	for i := len(e.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, e.history[i])
	}
	return out
}

// advanceTime is for testing - advances the internal clock.
func (e *Evaluator) advanceTime(d time.Duration) {
	oldNow := e.now
	e.now = func() time.Time {
		return oldNow().Add(d)
	}
}
