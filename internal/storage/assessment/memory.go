package assessment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/newthinker/prism/internal/core"
)

// MemoryStore is a bounded in-memory result store. When full, the oldest
// result is dropped.
type MemoryStore struct {
	results []core.AnalysisResult
	maxSize int
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryStore{
		results: make([]core.AnalysisResult, 0, maxSize),
		maxSize: maxSize,
	}
}

// Save adds a result to the store.
func (m *MemoryStore) Save(ctx context.Context, result *core.AnalysisResult) error {
	if result == nil {
		return core.ErrNoData
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	m.results = append(m.results, *result)

	if len(m.results) > m.maxSize {
		m.results = m.results[len(m.results)-m.maxSize:]
	}
	return nil
}

// GetByID retrieves a result by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.AnalysisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.results {
		if m.results[i].ID == id {
			r := m.results[i]
			return &r, nil
		}
	}
	return nil, core.ErrResultNotFound
}

// Latest returns the most recently saved result for symbol.
func (m *MemoryStore) Latest(ctx context.Context, symbol string) (*core.AnalysisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.results) - 1; i >= 0; i-- {
		if strings.EqualFold(m.results[i].Symbol, symbol) {
			r := m.results[i]
			return &r, nil
		}
	}
	return nil, core.ErrResultNotFound
}

// List returns results matching the filter, newest first.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]core.AnalysisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.AnalysisResult
	for i := len(m.results) - 1; i >= 0; i-- {
		if matches(m.results[i], filter) {
			result = append(result, m.results[i])
		}
	}

	if filter.Offset >= len(result) {
		return []core.AnalysisResult{}, nil
	}
	if filter.Offset > 0 {
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Count returns the count of matching results.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, r := range m.results {
		if matches(r, filter) {
			count++
		}
	}
	return count, nil
}

func matches(r core.AnalysisResult, filter ListFilter) bool {
	if filter.Symbol != "" && !strings.EqualFold(r.Symbol, filter.Symbol) {
		return false
	}
	if filter.Recommendation != "" && r.Recommendation != filter.Recommendation {
		return false
	}
	if filter.RiskLevel != "" && r.RiskLevel != filter.RiskLevel {
		return false
	}
	if filter.ConflictOnly && r.Conflict == nil {
		return false
	}
	if !filter.From.IsZero() && r.Timestamp.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && r.Timestamp.After(filter.To) {
		return false
	}
	return true
}
