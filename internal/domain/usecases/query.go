// Package usecases - query.go handles semantic search over the knowledge store.
package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
)

// DefaultTopN is the number of passages returned by a search.
const DefaultTopN = 3

// QueryUseCase retrieves reference passages relevant to a question.
type QueryUseCase struct {
	embedder ports.EmbeddingService
	store    ports.KnowledgeStore
	topN     int
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(embedder ports.EmbeddingService, store ports.KnowledgeStore, topN int) *QueryUseCase {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &QueryUseCase{
		embedder: embedder,
		store:    store,
		topN:     topN,
	}
}

// Search embeds the query and returns the most similar passages, best first.
func (uc *QueryUseCase) Search(ctx context.Context, query string) ([]entities.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query", ErrMissingField)
	}

	embedding, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := uc.store.Search(ctx, embedding, uc.topN)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge: %w", err)
	}
	return matches, nil
}
