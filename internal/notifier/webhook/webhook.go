// Package webhook implements an HTTP webhook notifier
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/notifier"
)

// Webhook posts JSON payloads to a URL.
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// New creates a new Webhook notifier
func New(url string, headers map[string]string) *Webhook {
	return &Webhook{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Init(cfg notifier.Config) error {
	if url, ok := cfg.Params["url"].(string); ok {
		w.url = url
	}
	// Viper decodes nested maps as map[string]any.
	switch headers := cfg.Params["headers"].(type) {
	case map[string]string:
		w.headers = headers
	case map[string]any:
		w.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			w.headers[k] = fmt.Sprint(v)
		}
	}

	if w.url == "" {
		return fmt.Errorf("webhook: url is required")
	}
	if w.client == nil {
		w.client = &http.Client{Timeout: 30 * time.Second}
	}
	return nil
}

// Payload is the JSON body for a single result.
type Payload struct {
	Type    string               `json:"type"`
	Summary string               `json:"summary"`
	Result  *core.AnalysisResult `json:"result,omitempty"`
}

// BatchPayload is the JSON body for several results.
type BatchPayload struct {
	Type    string                `json:"type"`
	Count   int                   `json:"count"`
	Summary string                `json:"summary"`
	Results []core.AnalysisResult `json:"results"`
}

func (w *Webhook) Send(ctx context.Context, result core.AnalysisResult) error {
	return w.post(ctx, Payload{Type: "analysis", Summary: notifier.Headline(result), Result: &result})
}

func (w *Webhook) SendBatch(ctx context.Context, results []core.AnalysisResult) error {
	if len(results) == 0 {
		return nil
	}
	return w.post(ctx, BatchPayload{
		Type:    "batch",
		Count:   len(results),
		Summary: notifier.BatchSummary(results),
		Results: results,
	})
}

func (w *Webhook) Notify(ctx context.Context, text string) error {
	return w.post(ctx, Payload{Type: "alert", Summary: text})
}

func (w *Webhook) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: server returned %d", resp.StatusCode)
	}
	return nil
}
