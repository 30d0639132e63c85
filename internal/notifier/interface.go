// Package notifier delivers analysis results and alert messages to external
// channels.
package notifier

import (
	"context"

	"github.com/newthinker/prism/internal/core"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Notifier defines the interface for result notification
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send delivers a single analysis result
	Send(ctx context.Context, result core.AnalysisResult) error

	// SendBatch delivers several results as one message
	SendBatch(ctx context.Context, results []core.AnalysisResult) error

	// Notify delivers a free-form message, such as a fired alert
	Notify(ctx context.Context, text string) error
}
