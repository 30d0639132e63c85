package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/notifier"
)

var _ notifier.Notifier = (*Webhook)(nil)

func capture(t *testing.T, payload *map[string]any, headers *http.Header) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if headers != nil {
			*headers = r.Header.Clone()
		}
		if payload != nil {
			_ = json.NewDecoder(r.Body).Decode(payload)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestWebhook_Init(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
		headers int
	}{
		{"missing url", map[string]any{}, true, 0},
		{"url only", map[string]any{"url": "http://example.com/hook"}, false, 0},
		{"viper headers", map[string]any{
			"url":     "http://example.com/hook",
			"headers": map[string]any{"X-Token": "abc"},
		}, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Webhook{}
			err := w.Init(notifier.Config{Params: tt.params})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Init() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(w.headers) != tt.headers {
				t.Errorf("expected %d headers, got %d", tt.headers, len(w.headers))
			}
		})
	}
}

func TestWebhook_Send(t *testing.T) {
	var received map[string]any
	server := capture(t, &received, nil)
	w := New(server.URL, nil)

	result := core.AnalysisResult{
		Symbol:         "AAPL",
		Recommendation: core.RecommendationBuy,
		Confidence:     0.8,
		OverallScore:   78.75,
	}
	if err := w.Send(context.Background(), result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received["type"] != "analysis" {
		t.Errorf("expected type analysis, got %v", received["type"])
	}
	body, _ := received["result"].(map[string]any)
	if body["symbol"] != "AAPL" || body["recommendation"] != "BUY" {
		t.Errorf("unexpected result body %v", body)
	}
	if received["summary"] != "AAPL BUY (score 78.75, 80% confidence)" {
		t.Errorf("unexpected summary %v", received["summary"])
	}
}

func TestWebhook_SendBatch(t *testing.T) {
	var received map[string]any
	server := capture(t, &received, nil)
	w := New(server.URL, nil)

	results := []core.AnalysisResult{
		{Symbol: "AAPL", Recommendation: core.RecommendationBuy},
		{Symbol: "GOOG", Recommendation: core.RecommendationSell},
	}
	if err := w.SendBatch(context.Background(), results); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received["type"] != "batch" {
		t.Errorf("expected type batch, got %v", received["type"])
	}
	if received["count"].(float64) != 2 {
		t.Errorf("expected count 2, got %v", received["count"])
	}
}

func TestWebhook_SendBatch_Empty(t *testing.T) {
	w := New("http://127.0.0.1:1/hook", nil)
	if err := w.SendBatch(context.Background(), nil); err != nil {
		t.Errorf("empty batch should not error: %v", err)
	}
}

func TestWebhook_Notify(t *testing.T) {
	var received map[string]any
	server := capture(t, &received, nil)
	w := New(server.URL, nil)

	if err := w.Notify(context.Background(), "AAPL confidence above 0.8"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received["type"] != "alert" || received["summary"] != "AAPL confidence above 0.8" {
		t.Errorf("unexpected payload %v", received)
	}
	if _, ok := received["result"]; ok {
		t.Error("alert payload should not carry a result")
	}
}

func TestWebhook_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w := New(server.URL, nil)
	if err := w.Send(context.Background(), core.AnalysisResult{Symbol: "TEST"}); err == nil {
		t.Error("expected error for server error response")
	}
}

func TestWebhook_CustomHeaders(t *testing.T) {
	var headers http.Header
	server := capture(t, nil, &headers)

	w := New(server.URL, map[string]string{
		"Authorization": "Bearer test-token",
		"X-Custom":      "value",
	})
	_ = w.Send(context.Background(), core.AnalysisResult{Symbol: "TEST"})

	if headers.Get("Authorization") != "Bearer test-token" {
		t.Error("expected Authorization header")
	}
	if headers.Get("X-Custom") != "value" {
		t.Error("expected X-Custom header")
	}
	if headers.Get("Content-Type") != "application/json" {
		t.Error("expected JSON content type")
	}
}
