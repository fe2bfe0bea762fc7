// Package llm provides chat completion adapters.
// Clean Architecture: Adapters implementing ports.LLMService.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
)

// OllamaLLMAdapter implements ports.LLMService using the Ollama chat API.
type OllamaLLMAdapter struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaLLMAdapter creates a new Ollama LLM adapter.
func NewOllamaLLMAdapter(baseURL, model string) *OllamaLLMAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaLLMAdapter{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: 300 * time.Second, // Longer timeout for streaming
		},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ollamaChatRequest is the Ollama /api/chat request.
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

// ollamaChatResponse is one /api/chat response object; streaming sends one per line.
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

func (a *OllamaLLMAdapter) newRequest(ctx context.Context, req entities.CompletionRequest, stream bool) (*http.Request, error) {
	body := ollamaChatRequest{
		Model:    a.model,
		Messages: make([]ollamaMessage, len(req.Messages)),
		Stream:   stream,
		Options:  ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	}
	for i, m := range req.Messages {
		body.Messages[i] = ollamaMessage{Role: string(m.Role), Content: m.Content}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

// Complete returns the full assistant reply.
func (a *OllamaLLMAdapter) Complete(ctx context.Context, req entities.CompletionRequest) (string, error) {
	httpReq, err := a.newRequest(ctx, req, false)
	if err != nil {
		return "", err
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if chatResp.Error != "" {
		return "", fmt.Errorf("Ollama error: %s", chatResp.Error)
	}

	return chatResp.Message.Content, nil
}

// CompleteStream streams the reply via Ollama's newline-delimited JSON.
func (a *OllamaLLMAdapter) CompleteStream(ctx context.Context, req entities.CompletionRequest) (<-chan ports.StreamToken, error) {
	httpReq, err := a.newRequest(ctx, req, true)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}

	ch := make(chan ports.StreamToken, 100)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue // Skip malformed lines
			}
			tok := ports.StreamToken{Content: chunk.Message.Content, Done: chunk.Done}
			if chunk.Error != "" {
				tok = ports.StreamToken{Done: true, Error: fmt.Errorf("Ollama error: %s", chunk.Error)}
			}
			if !emit(ctx, ch, tok) || tok.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			emit(ctx, ch, ports.StreamToken{Done: true, Error: err})
		}
	}()

	return ch, nil
}

// emit delivers tok unless ctx is cancelled first.
func emit(ctx context.Context, ch chan<- ports.StreamToken, tok ports.StreamToken) bool {
	select {
	case ch <- tok:
		return true
	case <-ctx.Done():
		return false
	}
}
