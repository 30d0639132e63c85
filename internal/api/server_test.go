package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/analysis"
	"github.com/newthinker/prism/internal/app"
	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/metrics"
	"github.com/newthinker/prism/internal/provider/static"
	"github.com/newthinker/prism/internal/session"
	"github.com/newthinker/prism/internal/storage/assessment"
)

func newTestDeps() Dependencies {
	p := static.New(static.Fixtures{
		Market: map[string]core.MarketData{"AAPL": {Price: core.Float(120)}},
		Fundamentals: map[string]core.FundamentalData{
			"AAPL": {ROE: core.Float(0.31), DebtToEquity: core.Float(0.2), PE: core.Float(12), RevenueGrowth: core.Float(0.2)},
		},
		Technical: map[string]core.TechnicalData{
			"AAPL": {RSI: core.Float(40), MACD: core.Float(2), MACDSignal: core.Float(1), SMA50: core.Float(110), SMA200: core.Float(100)},
		},
	})
	a := app.New(analysis.NewAnalyzer(p, p, analysis.AnalyzerConfig{}, nil), assessment.NewMemoryStore(100), zap.NewNop())
	a.SetWatchlist([]app.WatchlistItem{{Symbol: "AAPL"}})
	return Dependencies{App: a, Metrics: metrics.NewRegistry()}
}

func newTestServer(t *testing.T, apiKey string, deps Dependencies) *Server {
	t.Helper()
	srv, err := NewServer(Config{Host: "localhost", Port: 0, APIKey: apiKey}, deps, zap.NewNop())
	require.NoError(t, err)
	return srv
}

func serve(srv *Server, method, path, body, key string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestNewServer_RequiresApp(t *testing.T) {
	_, err := NewServer(Config{}, Dependencies{}, nil)
	assert.Error(t, err)
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, "test-key", newTestDeps())

	w := serve(srv, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code, "health is public")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_APIAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		provided   string
		wantStatus int
	}{
		{"missing key", "test-key", "", http.StatusUnauthorized},
		{"valid key", "test-key", "test-key", http.StatusOK},
		{"auth disabled", "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.configured, newTestDeps())
			w := serve(srv, http.MethodGet, "/api/v1/results", "", tt.provided)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t, "", newTestDeps())

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{http.MethodGet, "/api/v1/analysis/AAPL?mode=technical", "", http.StatusOK},
		{http.MethodGet, "/api/v1/analysis/NOPE", "", http.StatusNotFound},
		{http.MethodPost, "/api/v1/analysis/run", `{"symbols":["AAPL"]}`, http.StatusAccepted},
		{http.MethodGet, "/api/v1/jobs", "", http.StatusOK},
		{http.MethodGet, "/api/v1/jobs/nope", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/sentiment/AAPL", "", http.StatusOK},
		{http.MethodGet, "/api/v1/results?symbol=AAPL", "", http.StatusOK},
		{http.MethodGet, "/api/v1/results/latest/AAPL", "", http.StatusOK},
		{http.MethodGet, "/api/v1/archive/2026-03-10", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/watchlist", "", http.StatusOK},
		{http.MethodPost, "/api/v1/watchlist", `{"symbol":"MSFT"}`, http.StatusCreated},
		{http.MethodDelete, "/api/v1/watchlist/MSFT", "", http.StatusOK},
		{http.MethodGet, "/api/v1/stats", "", http.StatusOK},
		{http.MethodGet, "/api/v1/alerts", "", http.StatusOK},
		{http.MethodPut, "/api/v1/watchlist", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(srv, tt.method, tt.path, tt.body, "")
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestServer_SessionFlow(t *testing.T) {
	deps := newTestDeps()
	deps.Sessions = session.NewStore(10, 0)
	srv := newTestServer(t, "", deps)

	w := serve(srv, http.MethodPost, "/api/v1/sessions", `{"symbol":"AAPL"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data session.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.ID

	w = serve(srv, http.MethodPost, "/api/v1/sessions/"+id+"/explain", `{"question":"What are the risks?"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(srv, http.MethodGet, "/api/v1/sessions/"+id, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Data session.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.Data.Messages, 2)

	assert.Equal(t, http.StatusNoContent, serve(srv, http.MethodDelete, "/api/v1/sessions/"+id, "", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/api/v1/sessions/"+id, "", "").Code)
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, "", newTestDeps())

	serve(srv, http.MethodGet, "/api/v1/analysis/AAPL", "", "")
	serve(srv, http.MethodGet, "/api/v1/sentiment/AAPL", "", "")

	w := serve(srv, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `path="/api/v1/analysis/{symbol}"`), "requests are labeled by route pattern")
	assert.Contains(t, body, "prism_sessions_active")
}
