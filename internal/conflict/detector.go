// Package conflict flags material disagreement between market sentiment and
// fundamental health.
package conflict

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/prism/internal/core"
)

// DefaultThreshold is the magnitude each side must exceed.
const DefaultThreshold = 0.5

// Detector compares a sentiment value and a fundamentals polarity, both in
// [-1, 1]. It holds no per-call state.
type Detector struct {
	threshold float64
	now       func() time.Time
}

// New creates a detector. Thresholds outside (0, 1) fall back to the default.
func New(threshold float64) *Detector {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold, now: time.Now}
}

// Threshold returns the configured magnitude threshold.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Detect returns a conflict when sentiment and fundamentals sit strictly on
// opposite sides of the threshold, or nil otherwise. Inputs are clamped.
func (d *Detector) Detect(symbol string, sentiment, fundamentals float64) *core.SentimentConflict {
	if math.IsNaN(sentiment) || math.IsNaN(fundamentals) {
		return nil
	}
	s := core.Clamp(sentiment, -1, 1)
	f := core.Clamp(fundamentals, -1, 1)
	t := d.threshold

	var kind core.ConflictType
	switch {
	case s > t && f < -t:
		kind = core.ConflictBullishSentimentBearishFundamentals
	case s < -t && f > t:
		kind = core.ConflictBearishSentimentBullishFundamentals
	default:
		return nil
	}

	return &core.SentimentConflict{
		Symbol:               symbol,
		Type:                 kind,
		Severity:             d.severity(s, f),
		SentimentValue:       s,
		FundamentalsPolarity: f,
		DetectedAt:           d.now(),
	}
}

// severity averages the mean magnitude with the mean excess past the
// threshold, so it is small just past the boundary and 1 at (±1, ∓1).
func (d *Detector) severity(s, f float64) float64 {
	as, af := math.Abs(s), math.Abs(f)
	magnitude := (as + af) / 2
	excess := ((as - d.threshold) + (af - d.threshold)) / (2 * (1 - d.threshold))
	return core.Clamp((magnitude+excess)/2, 0, 1)
}

// Describe renders a conflict as a short risk statement.
func Describe(c *core.SentimentConflict) string {
	if c == nil {
		return ""
	}
	switch c.Type {
	case core.ConflictBullishSentimentBearishFundamentals:
		return fmt.Sprintf("Bullish sentiment (%.2f) contradicts weak fundamentals (%.2f)", c.SentimentValue, c.FundamentalsPolarity)
	default:
		return fmt.Sprintf("Bearish sentiment (%.2f) contradicts strong fundamentals (%.2f)", c.SentimentValue, c.FundamentalsPolarity)
	}
}
