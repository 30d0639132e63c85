// Package router decides which analysis results are worth sending and hands
// them to the notifier registry.
package router

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/notifier"
)

// Config holds router configuration
type Config struct {
	MinConfidence          float64               `mapstructure:"min_confidence"`
	CooldownDuration       time.Duration         `mapstructure:"cooldown_duration"`
	EnabledRecommendations []core.Recommendation `mapstructure:"enabled_recommendations"`
	// Results whose conflict severity reaches this floor skip the
	// confidence and recommendation filters. Zero disables the override.
	ConflictSeverityFloor float64 `mapstructure:"conflict_severity_floor"`
}

// DefaultConfig returns default router configuration
func DefaultConfig() Config {
	return Config{
		MinConfidence:    0.5,
		CooldownDuration: 1 * time.Hour,
		EnabledRecommendations: []core.Recommendation{
			core.RecommendationStrongBuy, core.RecommendationBuy,
			core.RecommendationSell, core.RecommendationStrongSell,
		},
		ConflictSeverityFloor: 0.6,
	}
}

// Recorder counts delivery outcomes per notifier.
type Recorder interface {
	RecordNotification(notifier, status string)
}

// Router routes results to notifiers with filtering
type Router struct {
	cfg       Config
	registry  *notifier.Registry
	logger    *zap.Logger
	recorder  Recorder
	cooldowns map[string]time.Time // symbol -> last routed time
	now       func() time.Time
	mu        sync.RWMutex
}

// New creates a new result router. A nil registry filters without sending.
func New(cfg Config, registry *notifier.Registry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:       cfg,
		registry:  registry,
		logger:    logger,
		cooldowns: make(map[string]time.Time),
		now:       time.Now,
	}
}

// SetRecorder installs a delivery recorder.
func (r *Router) SetRecorder(rec Recorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = rec
}

func (r *Router) record(errs map[string]error) {
	r.mu.RLock()
	rec := r.recorder
	r.mu.RUnlock()
	if rec == nil {
		return
	}
	for _, n := range r.registry.GetAll() {
		status := "sent"
		if _, failed := errs[n.Name()]; failed {
			status = "failed"
		}
		rec.RecordNotification(n.Name(), status)
	}
}

// Route sends result to every notifier when it passes the filters. It
// reports whether the result was sent. Notifier failures are logged, not
// returned.
func (r *Router) Route(ctx context.Context, result core.AnalysisResult) bool {
	if !r.admit(result) {
		r.logger.Debug("result filtered out",
			zap.String("symbol", result.Symbol),
			zap.String("recommendation", string(result.Recommendation)),
			zap.Float64("confidence", result.Confidence),
		)
		return false
	}
	if r.registry == nil {
		return true
	}

	errs := r.registry.NotifyAll(ctx, result)
	r.record(errs)
	for name, err := range errs {
		r.logger.Error("notifier failed",
			zap.String("notifier", name),
			zap.String("symbol", result.Symbol),
			zap.Error(err),
		)
	}

	r.logger.Info("result routed",
		zap.String("symbol", result.Symbol),
		zap.String("recommendation", string(result.Recommendation)),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("conflict", result.Conflict != nil),
		zap.Int("notifiers", r.registry.Len()),
		zap.Int("errors", len(errs)),
	)
	return true
}

// RouteBatch filters results and sends the survivors as one batch. It
// returns how many were sent.
func (r *Router) RouteBatch(ctx context.Context, results []core.AnalysisResult) int {
	var filtered []core.AnalysisResult
	for _, result := range results {
		if r.admit(result) {
			filtered = append(filtered, result)
		}
	}
	if len(filtered) == 0 || r.registry == nil {
		return len(filtered)
	}

	errs := r.registry.NotifyAllBatch(ctx, filtered)
	r.record(errs)
	for name, err := range errs {
		r.logger.Error("notifier failed on batch",
			zap.String("notifier", name),
			zap.Error(err),
		)
	}

	r.logger.Info("batch routed",
		zap.Int("total", len(results)),
		zap.Int("filtered", len(filtered)),
		zap.Int("errors", len(errs)),
	)
	return len(filtered)
}

// admit applies the filters and, on success, starts the symbol's cooldown.
func (r *Router) admit(result core.AnalysisResult) bool {
	if !r.passesFilters(result) {
		return false
	}

	key := strings.ToUpper(result.Symbol)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.cooldowns[key]; ok && now.Sub(last) < r.cfg.CooldownDuration {
		return false
	}
	r.cooldowns[key] = now
	return true
}

// passesFilters checks confidence and recommendation, unless a severe
// conflict overrides them.
func (r *Router) passesFilters(result core.AnalysisResult) bool {
	if r.cfg.ConflictSeverityFloor > 0 && result.Conflict != nil &&
		result.Conflict.Severity >= r.cfg.ConflictSeverityFloor {
		return true
	}

	if result.Confidence < r.cfg.MinConfidence {
		return false
	}

	if len(r.cfg.EnabledRecommendations) > 0 {
		for _, rec := range r.cfg.EnabledRecommendations {
			if result.Recommendation == rec {
				return true
			}
		}
		return false
	}
	return true
}

// ClearCooldown removes cooldown for a specific symbol
func (r *Router) ClearCooldown(symbol string) {
	r.mu.Lock()
	delete(r.cooldowns, strings.ToUpper(symbol))
	r.mu.Unlock()
}

// ClearAllCooldowns removes all cooldowns
func (r *Router) ClearAllCooldowns() {
	r.mu.Lock()
	r.cooldowns = make(map[string]time.Time)
	r.mu.Unlock()
}

// CleanupExpiredCooldowns removes cooldown entries older than 2x the cooldown duration.
func (r *Router) CleanupExpiredCooldowns() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	expiry := r.cfg.CooldownDuration * 2
	removed := 0

	for symbol, lastTime := range r.cooldowns {
		if now.Sub(lastTime) > expiry {
			delete(r.cooldowns, symbol)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine periodically drops expired cooldowns until ctx ends.
func (r *Router) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := r.CleanupExpiredCooldowns(); removed > 0 {
					r.logger.Debug("cleaned up expired cooldowns", zap.Int("removed", removed))
				}
			}
		}
	}()
}

// GetStats returns router statistics
func (r *Router) GetStats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]any{
		"cooldowns_active":        len(r.cooldowns),
		"min_confidence":          r.cfg.MinConfidence,
		"cooldown_seconds":        r.cfg.CooldownDuration.Seconds(),
		"enabled_recommendations": r.cfg.EnabledRecommendations,
		"conflict_severity_floor": r.cfg.ConflictSeverityFloor,
	}
}
