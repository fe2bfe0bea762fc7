package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/usecases"
)

// embeddingRecord is one entry of an embeddings file:
// [{"text": "...", "embedding": [0.1, ...]}, ...]
type embeddingRecord struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// EmbeddingFileLoader reads and writes precomputed embedding files.
type EmbeddingFileLoader struct{}

// NewEmbeddingFileLoader creates an EmbeddingFileLoader.
func NewEmbeddingFileLoader() *EmbeddingFileLoader {
	return &EmbeddingFileLoader{}
}

// Load returns the file's entries as passages of a single document keyed by
// the file path. Entries without text or embedding are skipped.
func (l *EmbeddingFileLoader) Load(path string) ([]entities.Passage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading embeddings file: %w", err)
	}

	var records []embeddingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding embeddings file: %w", err)
	}

	abs, _ := filepath.Abs(path)
	docID := usecases.DocumentID("embeddings:" + abs)

	passages := make([]entities.Passage, 0, len(records))
	for _, r := range records {
		if r.Text == "" || len(r.Embedding) == 0 {
			continue
		}
		idx := len(passages)
		passages = append(passages, entities.Passage{
			ID:         usecases.PassageID(docID, idx),
			DocumentID: docID,
			Text:       r.Text,
			Index:      idx,
			Embedding:  r.Embedding,
		})
	}
	return passages, nil
}

// Save writes passages in the same format Load reads.
func (l *EmbeddingFileLoader) Save(path string, passages []entities.Passage) error {
	records := make([]embeddingRecord, len(passages))
	for i, p := range passages {
		records[i] = embeddingRecord{Text: p.Text, Embedding: p.Embedding}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding embeddings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}
