package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/core"
)

// Registry holds named data providers in registration order. It is itself a
// DataProvider that tries each registered provider in turn.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]DataProvider
	order     []string
	logger    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		providers: make(map[string]DataProvider),
		logger:    logger,
	}
}

// Register adds p. Registering a name twice is an error.
func (r *Registry) Register(p DataProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[p.Name()]; exists {
		return fmt.Errorf("provider %s already registered", p.Name())
	}
	r.providers[p.Name()] = p
	r.order = append(r.order, p.Name())
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (DataProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// GetAll returns providers in fallback order.
func (r *Registry) GetAll() []DataProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]DataProvider, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.providers[name])
	}
	return result
}

// Name implements DataProvider.
func (r *Registry) Name() string { return "registry" }

// GetMarketData implements DataProvider.
func (r *Registry) GetMarketData(ctx context.Context, symbol string) (*core.MarketData, error) {
	return first(ctx, r, "market", func(p DataProvider) (*core.MarketData, error) {
		return p.GetMarketData(ctx, symbol)
	})
}

// GetFundamentals implements DataProvider.
func (r *Registry) GetFundamentals(ctx context.Context, symbol string) (*core.FundamentalData, error) {
	return first(ctx, r, "fundamentals", func(p DataProvider) (*core.FundamentalData, error) {
		return p.GetFundamentals(ctx, symbol)
	})
}

// GetTechnical implements DataProvider.
func (r *Registry) GetTechnical(ctx context.Context, symbol, timeframe string) (*core.TechnicalData, error) {
	return first(ctx, r, "technical", func(p DataProvider) (*core.TechnicalData, error) {
		return p.GetTechnical(ctx, symbol, timeframe)
	})
}

// first returns the first successful answer. The symbol is reported as not
// found only when every provider says so.
func first[T any](ctx context.Context, r *Registry, category string, fetch func(DataProvider) (*T, error)) (*T, error) {
	providers := r.GetAll()
	if len(providers) == 0 {
		return nil, core.WrapError(core.ErrProviderFailed, errors.New("no data providers registered"))
	}

	allNotFound := true
	var lastErr error
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := fetch(p)
		if err == nil && v != nil {
			return v, nil
		}
		if err == nil {
			err = core.ErrNoData
		}
		if !errors.Is(err, core.ErrSymbolNotFound) {
			allNotFound = false
		}
		lastErr = err
		r.logger.Debug("provider fallback",
			zap.String("provider", p.Name()),
			zap.String("category", category),
			zap.Error(err),
		)
	}

	if allNotFound {
		return nil, core.ErrSymbolNotFound
	}
	return nil, lastErr
}
