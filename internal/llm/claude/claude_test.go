package claude

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/llm"
)

var _ llm.Provider = (*Provider)(nil)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New("", "model", ""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_DefaultModel(t *testing.T) {
	p, err := New("test-key", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != defaultModel {
		t.Errorf("expected default model, got %s", p.model)
	}
}

func TestProvider_Chat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"{\"summary\":"},{"type":"text","text":"\"ok\"}"}],
			"stop_reason":"end_turn","stop_sequence":null,
			"usage":{"input_tokens":12,"output_tokens":7}
		}`))
	}))
	defer srv.Close()

	p, err := New("test-key", "claude-test", srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		SystemPrompt: "You explain stock analyses.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "Explain AAPL"}},
		JSONMode:     true,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != `{"summary":"ok"}` {
		t.Errorf("expected text blocks joined, got %q", resp.Content)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 7 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
	if resp.FinishReason != "end_turn" {
		t.Errorf("unexpected finish reason %s", resp.FinishReason)
	}

	system, _ := body["system"].([]any)
	if len(system) != 1 || !strings.Contains(system[0].(map[string]any)["text"].(string), "JSON object") {
		t.Errorf("expected JSON instruction in system prompt, got %v", body["system"])
	}
	if body["max_tokens"].(float64) != llm.DefaultMaxTokens {
		t.Errorf("expected default max tokens, got %v", body["max_tokens"])
	}
}

func TestProvider_ChatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	p, _ := New("test-key", "", srv.URL+"/")
	_, err := p.Chat(context.Background(), llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	if !errors.Is(err, core.ErrLLMFailed) {
		t.Errorf("expected ErrLLMFailed, got %v", err)
	}
}
