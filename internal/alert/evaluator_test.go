package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/prism/internal/core"
)

type mockNotifier struct {
	sent []string
	fail bool
}

func (m *mockNotifier) Name() string { return "mock" }
func (m *mockNotifier) Notify(ctx context.Context, msg string) error {
	m.sent = append(m.sent, msg)
	if m.fail {
		return errors.New("unreachable")
	}
	return nil
}

var ctx = context.Background()

func TestEvaluator_ForDuration(t *testing.T) {
	notifier := &mockNotifier{}
	rule := Rule{
		Name:     "bullish_streak",
		Expr:     "sentiment > 0.5",
		For:      time.Minute,
		Severity: "warning",
		Message:  "Sentiment at {value}",
	}
	eval := NewEvaluator([]Rule{rule}, []Notifier{notifier}, nil)
	metrics := map[string]float64{"sentiment": 0.7}

	// First evaluation starts the pending timer, doesn't fire
	if fired := eval.Evaluate(ctx, "AAPL", metrics); len(fired) != 0 {
		t.Errorf("expected no alert on first eval, got %d", len(fired))
	}

	eval.advanceTime(2 * time.Minute)
	fired := eval.Evaluate(ctx, "AAPL", metrics)
	if len(fired) != 1 || len(notifier.sent) != 1 {
		t.Fatalf("expected 1 alert after duration, got %d", len(fired))
	}
	if notifier.sent[0] != "[WARNING] AAPL bullish_streak: Sentiment at 0.7" {
		t.Errorf("unexpected message: %s", notifier.sent[0])
	}
	if fired[0].Value != 0.7 {
		t.Errorf("expected value 0.7, got %f", fired[0].Value)
	}
}

func TestEvaluator_Cooldown(t *testing.T) {
	notifier := &mockNotifier{}
	eval := NewEvaluator([]Rule{{Name: "conflict", Expr: "conflict_severity >= 0.6"}}, []Notifier{notifier}, nil)
	eval.SetCooldown(5 * time.Minute)
	metrics := map[string]float64{"conflict_severity": 0.8}

	eval.Evaluate(ctx, "AAPL", metrics)
	eval.Evaluate(ctx, "AAPL", metrics)
	eval.Evaluate(ctx, "AAPL", metrics)
	if len(notifier.sent) != 1 {
		t.Errorf("expected 1 notification due to cooldown, got %d", len(notifier.sent))
	}

	// Cooldown is per symbol.
	eval.Evaluate(ctx, "TSLA", metrics)
	if len(notifier.sent) != 2 {
		t.Errorf("expected TSLA to fire independently, got %d", len(notifier.sent))
	}

	eval.advanceTime(6 * time.Minute)
	eval.Evaluate(ctx, "AAPL", metrics)
	if len(notifier.sent) != 3 {
		t.Errorf("expected AAPL to fire after cooldown, got %d", len(notifier.sent))
	}
}

func TestEvaluator_PendingClearsWhenRuleNoLongerTriggers(t *testing.T) {
	notifier := &mockNotifier{}
	rule := Rule{Name: "weak", Expr: "overall_score < 30", For: time.Minute}
	eval := NewEvaluator([]Rule{rule}, []Notifier{notifier}, nil)

	eval.Evaluate(ctx, "AAPL", map[string]float64{"overall_score": 20})
	eval.Evaluate(ctx, "AAPL", map[string]float64{"overall_score": 50})

	eval.advanceTime(2 * time.Minute)
	eval.Evaluate(ctx, "AAPL", map[string]float64{"overall_score": 20})

	if len(notifier.sent) != 0 {
		t.Errorf("expected no notification (pending cleared), got %d", len(notifier.sent))
	}
}

func TestEvaluator_Observe(t *testing.T) {
	notifier := &mockNotifier{fail: true}
	rules := []Rule{
		{Name: "conflict", Expr: "conflict_severity >= 0.6", Severity: "critical"},
		{Name: "strong", Expr: "overall_score >= 80", Symbols: []string{"MSFT"}},
		{Name: "broken", Expr: "this is not an expression"},
	}
	eval := NewEvaluator(rules, []Notifier{notifier}, nil)
	if len(eval.Rules()) != 2 {
		t.Fatalf("invalid rule should be skipped, got %d rules", len(eval.Rules()))
	}

	result := core.AnalysisResult{
		Symbol:       "aapl",
		OverallScore: 90,
		Conflict:     &core.SentimentConflict{Severity: 0.75},
	}
	fired := eval.Observe(ctx, result)
	if len(fired) != 1 || fired[0].Rule != "conflict" || fired[0].Symbol != "AAPL" {
		t.Errorf("expected only the conflict rule for AAPL, got %+v", fired)
	}
	if len(notifier.sent) != 1 {
		t.Error("failing notifiers are still attempted")
	}

	recent := eval.Recent(10)
	if len(recent) != 1 || recent[0].Severity != "critical" {
		t.Errorf("unexpected history %+v", recent)
	}
}

func TestRule_Evaluate(t *testing.T) {
	tests := []struct {
		expr     string
		metrics  map[string]float64
		expected bool
	}{
		{"confidence > 0.7", map[string]float64{"confidence": 0.8}, true},
		{"confidence > 0.7", map[string]float64{"confidence": 0.7}, false},
		{"sentiment < -0.5", map[string]float64{"sentiment": -0.6}, true},
		{"sentiment < -0.5", map[string]float64{"sentiment": -0.2}, false},
		{"risk_level >= 3", map[string]float64{"risk_level": 3}, true},
		{"overall_score <= 30", map[string]float64{"overall_score": 30}, true},
		{"conflict_severity == 0", map[string]float64{"conflict_severity": 0}, true},
		{"conflict_severity != 0", map[string]float64{"conflict_severity": 0}, false},
		{"missing > 0", map[string]float64{}, false},
		{"garbage", map[string]float64{"garbage": 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			rule := Rule{Expr: tt.expr}
			if got := rule.Evaluate(tt.metrics); got != tt.expected {
				t.Errorf("expr %q with metrics %v: expected %v, got %v", tt.expr, tt.metrics, tt.expected, got)
			}
		})
	}
}

func TestRule_FormatMessage(t *testing.T) {
	rule := Rule{
		Name:     "sentiment_crash",
		Expr:     "sentiment < -0.5",
		Severity: "warning",
		Message:  "{symbol} sentiment fell to {value}",
	}

	msg := rule.FormatMessage("TSLA", map[string]float64{"sentiment": -0.62})
	if msg != "[WARNING] TSLA sentiment_crash: TSLA sentiment fell to -0.62" {
		t.Errorf("unexpected message: %s", msg)
	}

	bare := Rule{Name: "x", Expr: "confidence > 0.9"}
	if got := bare.FormatMessage("AAPL", nil); got != "[INFO] AAPL x: confidence > 0.9" {
		t.Errorf("unexpected default message: %s", got)
	}
}

func TestMetrics(t *testing.T) {
	r := core.AnalysisResult{
		OverallScore:     72,
		Confidence:       0.6,
		FundamentalScore: core.Float(80),
		RiskLevel:        core.RiskHigh,
		RiskFactors:      map[string]float64{"pe_ratio": 0.4},
		Sentiment:        &core.SentimentData{OverallSentiment: 0.3, ConfidenceScore: 0.5},
		PriceTargets: map[core.Horizon]core.PriceTarget{
			core.HorizonLong: {ExpectedReturn: 0.18},
		},
	}
	m := Metrics(r)

	want := map[string]float64{
		MetricOverallScore:        72,
		MetricConfidence:          0.6,
		MetricFundamentalScore:    80,
		MetricRiskLevel:           3,
		"risk_pe_ratio":           0.4,
		MetricSentiment:           0.3,
		MetricSentimentConfidence: 0.5,
		MetricConflictSeverity:    0,
		MetricLongUpside:          0.18,
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("%s = %v, want %v", k, m[k], v)
		}
	}
	if _, ok := m[MetricTechnicalScore]; ok {
		t.Error("absent technical score must not appear")
	}
}
