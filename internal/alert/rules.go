// Package alert evaluates threshold rules against the metrics of each
// analysis result and notifies when a rule holds long enough.
package alert

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Rule defines an alert rule such as "conflict_severity >= 0.6".
type Rule struct {
	Name     string        `mapstructure:"name"`
	Expr     string        `mapstructure:"expr"`
	For      time.Duration `mapstructure:"for"`
	Severity string        `mapstructure:"severity"`
	Message  string        `mapstructure:"message"`
	// Symbols limits the rule to these symbols. Empty means all.
	Symbols []string `mapstructure:"symbols"`
}

var exprPattern = regexp.MustCompile(`^(\w+)\s*(>=|<=|==|!=|>|<)\s*(-?\d+(?:\.\d+)?)$`)

// Condition is a parsed rule expression.
type Condition struct {
	Metric    string
	Op        string
	Threshold float64
}

// ParseExpr parses "metric op value".
func ParseExpr(expr string) (Condition, error) {
	m := exprPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if len(m) != 4 {
		return Condition{}, fmt.Errorf("invalid alert expression %q", expr)
	}
	v, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Condition{}, fmt.Errorf("invalid threshold in %q: %w", expr, err)
	}
	return Condition{Metric: m[1], Op: m[2], Threshold: v}, nil
}

// Holds reports whether value satisfies the condition.
func (c Condition) Holds(value float64) bool {
	switch c.Op {
	case ">":
		return value > c.Threshold
	case "<":
		return value < c.Threshold
	case ">=":
		return value >= c.Threshold
	case "<=":
		return value <= c.Threshold
	case "==":
		return value == c.Threshold
	case "!=":
		return value != c.Threshold
	}
	return false
}

// Validate checks the rule is usable.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("alert rule name is required")
	}
	if _, err := ParseExpr(r.Expr); err != nil {
		return fmt.Errorf("rule %s: %w", r.Name, err)
	}
	return nil
}

// AppliesTo reports whether the rule covers symbol.
func (r *Rule) AppliesTo(symbol string) bool {
	if len(r.Symbols) == 0 {
		return true
	}
	for _, s := range r.Symbols {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

// Evaluate evaluates the rule expression against metrics. A missing metric
// or malformed expression never triggers.
func (r *Rule) Evaluate(metrics map[string]float64) bool {
	c, err := ParseExpr(r.Expr)
	if err != nil {
		return false
	}
	value, ok := metrics[c.Metric]
	return ok && c.Holds(value)
}

// FormatMessage renders the alert text. {symbol} and {value} in the message
// are replaced.
func (r *Rule) FormatMessage(symbol string, metrics map[string]float64) string {
	msg := r.Message
	if msg == "" {
		msg = r.Expr
	}
	value := ""
	if c, err := ParseExpr(r.Expr); err == nil {
		if v, ok := metrics[c.Metric]; ok {
			value = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	msg = strings.NewReplacer("{symbol}", symbol, "{value}", value).Replace(msg)

	severity := r.Severity
	if severity == "" {
		severity = "info"
	}
	return fmt.Sprintf("[%s] %s %s: %s", strings.ToUpper(severity), symbol, r.Name, msg)
}
