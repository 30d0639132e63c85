// Package assessment persists analysis results for later lookup.
package assessment

import (
	"context"
	"time"

	"github.com/newthinker/prism/internal/core"
)

// Store defines the interface for analysis result persistence.
type Store interface {
	// Save persists a result, assigning an ID when it has none.
	Save(ctx context.Context, result *core.AnalysisResult) error

	// GetByID retrieves a result by its ID.
	GetByID(ctx context.Context, id string) (*core.AnalysisResult, error)

	// Latest returns the most recent result for a symbol.
	Latest(ctx context.Context, symbol string) (*core.AnalysisResult, error)

	// List retrieves results matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]core.AnalysisResult, error)

	// Count returns the number of results matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter defines criteria for listing results.
type ListFilter struct {
	Symbol         string
	Recommendation core.Recommendation
	RiskLevel      core.RiskLevel
	ConflictOnly   bool
	From           time.Time
	To             time.Time
	Limit          int
	Offset         int
}
