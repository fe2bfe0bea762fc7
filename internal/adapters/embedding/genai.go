package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
)

// GenAIAdapter implements ports.EmbeddingService using Google's Gemini API.
type GenAIAdapter struct {
	client   *genai.Client
	model    string
	taskType string
}

// NewGenAIAdapter creates a GenAI embedding adapter. An empty taskType means
// SEMANTIC_SIMILARITY, which suits both search and grading.
func NewGenAIAdapter(ctx context.Context, apiKey, model, taskType string) (*GenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key: %w", ports.ErrUnavailable)
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	if taskType == "" {
		taskType = "SEMANTIC_SIMILARITY"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}
	return &GenAIAdapter{client: client, model: model, taskType: taskType}, nil
}

// Embed generates an embedding for a single text.
func (a *GenAIAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	embs, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embs[0], nil
}

// EmbedBatch uses the native batch endpoint.
func (a *GenAIAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := a.client.Models.EmbedContent(ctx, a.model, contents, &genai.EmbedContentConfig{
		TaskType: a.taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI embed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("GenAI returned %d embeddings for %d inputs", len(result.Embeddings), len(texts))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}
