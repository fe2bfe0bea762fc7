package vectordb

import (
	"context"
	"sort"
	"sync"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
)

// InMemoryStore keeps passages in process. Used when no database path is
// configured and by tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	passages map[string]entities.Passage // passageID -> passage
	docs     map[string][]string         // docID -> []passageID
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		passages: make(map[string]entities.Passage),
		docs:     make(map[string][]string),
	}
}

// Store upserts passages.
func (s *InMemoryStore) Store(ctx context.Context, passages []entities.Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range passages {
		if _, exists := s.passages[p.ID]; !exists {
			s.docs[p.DocumentID] = append(s.docs[p.DocumentID], p.ID)
		}
		s.passages[p.ID] = p
	}
	return nil
}

// Search returns the topK passages most similar to embedding.
func (s *InMemoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]entities.Match, 0, len(s.passages))
	for _, p := range s.passages {
		matches = append(matches, entities.Match{
			Passage: p,
			Score:   entities.CosineSimilarity(embedding, p.Embedding),
			Source:  p.DocumentID,
		})
	}
	return rank(matches, topK), nil
}

// Delete removes all passages of a document.
func (s *InMemoryStore) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.docs[documentID] {
		delete(s.passages, id)
	}
	delete(s.docs, documentID)
	return nil
}

// Clear removes every passage.
func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.passages = make(map[string]entities.Passage)
	s.docs = make(map[string][]string)
	return nil
}

// Count returns the number of stored passages.
func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages), nil
}

// rank sorts by score descending (ID breaks ties) and keeps the first topK.
func rank(matches []entities.Match, topK int) []entities.Match {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Passage.ID < matches[j].Passage.ID
	})
	if topK >= 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
