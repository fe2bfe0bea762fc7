package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// lengthEmbedder answers /api/embed with one-dimensional vectors holding
// each input's length, and records batch sizes.
type lengthEmbedder struct {
	mu      sync.Mutex
	batches []int
}

func (l *lengthEmbedder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/embed" {
		http.Error(w, `{"error":"wrong path"}`, http.StatusNotFound)
		return
	}
	var req ollamaEmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad json"}`, http.StatusBadRequest)
		return
	}
	l.mu.Lock()
	l.batches = append(l.batches, len(req.Input))
	l.mu.Unlock()

	resp := ollamaEmbedResponse{}
	for _, in := range req.Input {
		resp.Embeddings = append(resp.Embeddings, []float32{float32(len(in))})
	}
	json.NewEncoder(w).Encode(resp)
}

func TestOllamaAdapter_Embed(t *testing.T) {
	server := httptest.NewServer(&lengthEmbedder{})
	defer server.Close()

	emb, err := NewOllamaAdapter(server.URL+"/", "test-model").Embed(context.Background(), "sodium")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(emb) != 1 || emb[0] != 6 {
		t.Errorf("unexpected embedding: %v", emb)
	}
}

func TestOllamaAdapter_EmbedBatchSplitsAndKeepsOrder(t *testing.T) {
	fake := &lengthEmbedder{}
	server := httptest.NewServer(fake)
	defer server.Close()

	texts := make([]string, ollamaBatchSize*2+5)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}

	results, err := NewOllamaAdapter(server.URL, "test-model").EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(results) != len(texts) {
		t.Fatalf("expected %d results, got %d", len(texts), len(results))
	}
	for i, r := range results {
		if r[0] != float32(i+1) {
			t.Fatalf("result %d out of order: %v", i, r)
		}
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.batches) != 3 {
		t.Errorf("expected 3 requests, got %v", fake.batches)
	}
	total := 0
	for _, n := range fake.batches {
		if n > ollamaBatchSize {
			t.Errorf("batch of %d exceeds %d", n, ollamaBatchSize)
		}
		total += n
	}
	if total != len(texts) {
		t.Errorf("sent %d texts, want %d", total, len(texts))
	}
}

func TestOllamaAdapter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"model not loaded"}`, "model not loaded"},
		{"empty embedding", http.StatusOK, `{"embeddings":[[]]}`, "empty embedding"},
		{"count mismatch", http.StatusOK, `{"embeddings":[]}`, "0 embeddings for 1 inputs"},
		{"bad json", http.StatusOK, `{`, "decoding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewOllamaAdapter(server.URL, "").Embed(context.Background(), "x")
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestOllamaAdapter_DefaultValues(t *testing.T) {
	adapter := NewOllamaAdapter("", "")
	if adapter.baseURL != "http://localhost:11434" {
		t.Error("should default to localhost")
	}
	if adapter.model != "nomic-embed-text" {
		t.Error("should default to nomic-embed-text")
	}
}
