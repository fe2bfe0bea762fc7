package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
)

func TestOpenAI_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req openAIChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "gpt-test" || req.MaxTokens != 1000 || req.Temperature != 0.2 {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"A mole is an amount."}}]}`))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(server.URL, "sk-test", "gpt-test")
	resp, err := adapter.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if resp != "A mole is an amount." {
		t.Errorf("unexpected response: %s", resp)
	}
}

func TestOpenAI_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	resp, err := NewOpenAIAdapter(server.URL, "sk-test", "").Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if resp != "" {
		t.Errorf("expected empty response, got %q", resp)
	}
}

func TestOpenAI_CompleteStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(": keep-alive\n\n"))
		w.Write([]byte(`data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n\n"))
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"2H2"}}]}` + "\n\n"))
		w.Write([]byte(`data: {"choices":[{"delta":{"content":" + O2"}}]}` + "\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	ch, err := NewOpenAIAdapter(server.URL, "sk-test", "").CompleteStream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	var parts []string
	var done bool
	for tok := range ch {
		if tok.Error != nil {
			t.Fatalf("unexpected error: %v", tok.Error)
		}
		if tok.Content != "" {
			parts = append(parts, tok.Content)
		}
		done = tok.Done
	}
	if strings.Join(parts, "") != "2H2 + O2" || len(parts) != 2 {
		t.Errorf("unexpected parts %q", parts)
	}
	if !done {
		t.Error("stream should end with done")
	}
}

func TestOpenAI_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer server.Close()

	_, err := NewOpenAIAdapter(server.URL, "sk-bad", "").Complete(context.Background(), testRequest())
	if err == nil || !strings.Contains(err.Error(), "Incorrect API key") {
		t.Errorf("expected upstream message in error, got %v", err)
	}
}

func TestOpenAI_MissingKey(t *testing.T) {
	adapter := NewOpenAIAdapter("http://127.0.0.1:0", "", "")
	_, err := adapter.Complete(context.Background(), testRequest())
	if !errors.Is(err, ports.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenAI_DefaultValues(t *testing.T) {
	adapter := NewOpenAIAdapter("", "k", "")
	if adapter.baseURL != "https://api.openai.com" {
		t.Errorf("unexpected base URL %s", adapter.baseURL)
	}
	if adapter.model != "gpt-3.5-turbo" {
		t.Errorf("unexpected model %s", adapter.model)
	}
}
