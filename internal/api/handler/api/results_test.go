package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/storage/archive"
	"github.com/newthinker/prism/internal/storage/assessment"
)

func seedResults(t *testing.T) assessment.Store {
	t.Helper()
	store := assessment.NewMemoryStore(100)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	results := []core.AnalysisResult{
		{Symbol: "AAPL", Recommendation: core.RecommendationBuy, RiskLevel: core.RiskLow, Timestamp: base},
		{Symbol: "AAPL", Recommendation: core.RecommendationHold, RiskLevel: core.RiskModerate, Timestamp: base.Add(time.Hour)},
		{Symbol: "MSFT", Recommendation: core.RecommendationSell, RiskLevel: core.RiskHigh, Timestamp: base.Add(2 * time.Hour),
			Conflict: &core.SentimentConflict{Type: core.ConflictBullishSentimentBearishFundamentals, Severity: 0.7}},
	}
	for i := range results {
		require.NoError(t, store.Save(context.Background(), &results[i]))
	}
	return store
}

func TestResultsHandler_List(t *testing.T) {
	h := NewResultsHandler(seedResults(t), nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"all", "", http.StatusOK, 3},
		{"by symbol", "?symbol=AAPL", http.StatusOK, 2},
		{"by recommendation", "?recommendation=SELL", http.StatusOK, 1},
		{"by risk", "?risk_level=LOW", http.StatusOK, 1},
		{"conflicts only", "?conflict=true", http.StatusOK, 1},
		{"from date", "?from=2026-03-10T12:30:00Z", http.StatusOK, 2},
		{"limit", "?limit=1", http.StatusOK, 1},
		{"bad limit", "?limit=-1", http.StatusBadRequest, 0},
		{"bad date", "?from=yesterday", http.StatusBadRequest, 0},
		{"bad conflict", "?conflict=maybe", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/results"+tt.query, nil))

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			var data struct {
				Results []core.AnalysisResult `json:"results"`
			}
			decodeData(t, w, &data)
			assert.Len(t, data.Results, tt.wantCount)
		})
	}
}

func TestResultsHandler_GetByIDAndLatest(t *testing.T) {
	store := seedResults(t)
	h := NewResultsHandler(store, nil)

	latest, err := store.Latest(context.Background(), "AAPL")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/results/"+latest.ID, nil)
	req.SetPathValue("id", latest.ID)
	w := httptest.NewRecorder()
	h.GetByID(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var got core.AnalysisResult
	decodeData(t, w, &got)
	assert.Equal(t, core.RecommendationHold, got.Recommendation)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/results/latest/aapl", nil)
	req.SetPathValue("symbol", "aapl")
	w = httptest.NewRecorder()
	h.Latest(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &got)
	assert.Equal(t, latest.ID, got.ID)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/results/missing", nil)
	req.SetPathValue("id", "missing")
	w = httptest.NewRecorder()
	h.GetByID(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RESULT_NOT_FOUND", errorCode(t, w))
}

func TestResultsHandler_Archive(t *testing.T) {
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ar := archive.NewArchiver(fs, nil)

	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for _, sym := range []string{"AAPL", "MSFT"} {
		_, err := ar.Archive(context.Background(), &core.AnalysisResult{ID: sym + "-1", Symbol: sym, Timestamp: day})
		require.NoError(t, err)
	}
	h := NewResultsHandler(assessment.NewMemoryStore(10), ar)

	tests := []struct {
		name       string
		date       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"whole day", "2026-03-10", "", http.StatusOK, 2},
		{"one symbol", "2026-03-10", "?symbol=msft", http.StatusOK, 1},
		{"empty day", "2026-03-11", "", http.StatusOK, 0},
		{"bad date", "10-03-2026", "", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/archive/"+tt.date+tt.query, nil)
			req.SetPathValue("date", tt.date)
			w := httptest.NewRecorder()
			h.Archive(w, req)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusOK {
				var data struct {
					Count int `json:"count"`
				}
				decodeData(t, w, &data)
				assert.Equal(t, tt.wantCount, data.Count)
			}
		})
	}
}

func TestResultsHandler_ArchiveDisabled(t *testing.T) {
	h := NewResultsHandler(assessment.NewMemoryStore(10), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/archive/2026-03-10", nil)
	req.SetPathValue("date", "2026-03-10")
	w := httptest.NewRecorder()
	h.Archive(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
