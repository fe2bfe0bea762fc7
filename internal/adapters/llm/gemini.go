package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
)

// GeminiAdapter implements ports.LLMService using Google's Gemini API.
type GeminiAdapter struct {
	client *genai.Client
	model  string
}

// NewGeminiAdapter creates a Gemini chat adapter.
func NewGeminiAdapter(ctx context.Context, apiKey, model string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key: %w", ports.ErrUnavailable)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}
	return &GeminiAdapter{client: client, model: model}, nil
}

// geminiRequest splits system messages into the system instruction and maps
// the rest to user/model turns.
func geminiRequest(req entities.CompletionRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case entities.RoleSystem:
			system = append(system, m.Content)
		case entities.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, cfg
}

// Complete returns the concatenated text of the first candidate.
func (a *GeminiAdapter) Complete(ctx context.Context, req entities.CompletionRequest) (string, error) {
	contents, cfg := geminiRequest(req)
	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("calling Gemini: %w", err)
	}
	return resp.Text(), nil
}

// CompleteStream relays GenerateContentStream chunks as tokens.
func (a *GeminiAdapter) CompleteStream(ctx context.Context, req entities.CompletionRequest) (<-chan ports.StreamToken, error) {
	contents, cfg := geminiRequest(req)
	ch := make(chan ports.StreamToken, 100)

	go func() {
		defer close(ch)
		for resp, err := range a.client.Models.GenerateContentStream(ctx, a.model, contents, cfg) {
			if err != nil {
				emit(ctx, ch, ports.StreamToken{Done: true, Error: fmt.Errorf("streaming from Gemini: %w", err)})
				return
			}
			if text := resp.Text(); text != "" && !emit(ctx, ch, ports.StreamToken{Content: text}) {
				return
			}
		}
		emit(ctx, ch, ports.StreamToken{Done: true})
	}()

	return ch, nil
}
