package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/prism/internal/core"
)

type stubProvider struct {
	name   string
	market *core.MarketData
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) GetMarketData(ctx context.Context, symbol string) (*core.MarketData, error) {
	s.calls++
	return s.market, s.err
}

func (s *stubProvider) GetFundamentals(ctx context.Context, symbol string) (*core.FundamentalData, error) {
	return nil, s.err
}

func (s *stubProvider) GetTechnical(ctx context.Context, symbol, timeframe string) (*core.TechnicalData, error) {
	return nil, s.err
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&stubProvider{name: "a"}))
	require.NoError(t, r.Register(&stubProvider{name: "b"}))
	assert.Error(t, r.Register(&stubProvider{name: "a"}))

	p, ok := r.Get("b")
	require.True(t, ok)
	assert.Equal(t, "b", p.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)

	all := r.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name())
	assert.Equal(t, "b", all[1].Name())
}

func TestRegistry_Fallback(t *testing.T) {
	ctx := context.Background()

	t.Run("first success wins", func(t *testing.T) {
		failing := &stubProvider{name: "down", err: core.ErrProviderFailed}
		healthy := &stubProvider{name: "up", market: &core.MarketData{Price: core.Float(10)}}
		never := &stubProvider{name: "never", market: &core.MarketData{Price: core.Float(99)}}

		r := NewRegistry(nil)
		for _, p := range []*stubProvider{failing, healthy, never} {
			require.NoError(t, r.Register(p))
		}

		md, err := r.GetMarketData(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, 10.0, *md.Price)
		assert.Equal(t, 0, never.calls)
	})

	t.Run("not found only when all agree", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Register(&stubProvider{name: "a", err: core.ErrSymbolNotFound}))
		require.NoError(t, r.Register(&stubProvider{name: "b", err: core.ErrSymbolNotFound}))

		_, err := r.GetFundamentals(ctx, "ZZZ")
		assert.True(t, errors.Is(err, core.ErrSymbolNotFound))
	})

	t.Run("mixed failures keep last error", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Register(&stubProvider{name: "a", err: core.ErrSymbolNotFound}))
		require.NoError(t, r.Register(&stubProvider{name: "b", err: core.ErrProviderTimeout}))

		_, err := r.GetTechnical(ctx, "AAPL", "1d")
		assert.True(t, errors.Is(err, core.ErrProviderTimeout))
	})

	t.Run("nil result without error is no data", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Register(&stubProvider{name: "empty"}))

		_, err := r.GetMarketData(ctx, "AAPL")
		assert.True(t, errors.Is(err, core.ErrNoData))
	})

	t.Run("empty registry", func(t *testing.T) {
		_, err := NewRegistry(nil).GetMarketData(ctx, "AAPL")
		assert.True(t, errors.Is(err, core.ErrProviderFailed))
	})
}
