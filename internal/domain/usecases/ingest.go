// Package usecases contains application business rules.
// Usecases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
)

// ErrMissingField is wrapped by validation errors for required inputs.
var ErrMissingField = errors.New("missing required field")

// passageNamespace scopes deterministic passage IDs.
var passageNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("chemed/passage"))

// SeedTexts are the reference facts loaded by the seed command.
var SeedTexts = []string{
	"Atoms consist of a nucleus containing protons and neutrons, with electrons occupying orbitals.",
	"Oxidation involves loss of electrons; reduction involves gain of electrons.",
	"pH measures hydrogen ion concentration; lower pH means higher acidity.",
	"Ionic bonds form through electrostatic attraction between oppositely charged ions.",
	"Covalent bonds form when atoms share electron pairs to achieve stable electronic configurations.",
}

// IngestUseCase embeds reference documents into the knowledge store.
type IngestUseCase struct {
	embedder     ports.EmbeddingService
	store        ports.KnowledgeStore
	chunkSize    int
	chunkOverlap int
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	embedder ports.EmbeddingService,
	store ports.KnowledgeStore,
	chunkSize, chunkOverlap int,
) *IngestUseCase {
	if chunkSize <= 0 {
		chunkSize = 500 // characters
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 50
	}
	return &IngestUseCase{
		embedder:     embedder,
		store:        store,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Ingest chunks a document, embeds the chunks and stores them.
func (uc *IngestUseCase) Ingest(ctx context.Context, doc *entities.Document) error {
	passages := uc.chunkDocument(doc)
	if len(passages) == 0 {
		return nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", doc.ID, err)
	}
	if len(embeddings) != len(passages) {
		return fmt.Errorf("embedding %s: got %d vectors for %d passages", doc.ID, len(embeddings), len(passages))
	}

	for i := range passages {
		passages[i].Embedding = embeddings[i]
	}
	return uc.store.Store(ctx, passages)
}

// Seed ingests SeedTexts, one document per fact. Reseeding replaces the
// previous passages because IDs are derived from the text.
func (uc *IngestUseCase) Seed(ctx context.Context) (int, error) {
	now := time.Now()
	for i, text := range SeedTexts {
		doc := &entities.Document{
			ID:        DocumentID("seed:" + text),
			Title:     "seed " + strconv.Itoa(i+1),
			Source:    "seed",
			Content:   text,
			CreatedAt: now,
		}
		if err := uc.Ingest(ctx, doc); err != nil {
			return i, err
		}
	}
	return len(SeedTexts), nil
}

// Import stores passages that already carry embeddings.
func (uc *IngestUseCase) Import(ctx context.Context, passages []entities.Passage) error {
	for i, p := range passages {
		if len(p.Embedding) == 0 {
			return fmt.Errorf("%w: embedding for passage %d", ErrMissingField, i)
		}
	}
	return uc.store.Store(ctx, passages)
}

// Delete removes a document from the store.
func (uc *IngestUseCase) Delete(ctx context.Context, documentID string) error {
	return uc.store.Delete(ctx, documentID)
}

// chunkDocument splits document content into overlapping passages, breaking
// at word boundaries where possible.
func (uc *IngestUseCase) chunkDocument(doc *entities.Document) []entities.Passage {
	content := strings.TrimSpace(doc.Content)
	if len(content) == 0 {
		return nil
	}

	var passages []entities.Passage
	start := 0
	index := 0

	for start < len(content) {
		end := start + uc.chunkSize
		if end > len(content) {
			end = len(content)
		}

		if end < len(content) {
			if lastSpace := strings.LastIndex(content[start:end], " "); lastSpace > 0 {
				end = start + lastSpace
			}
		}

		text := strings.TrimSpace(content[start:end])
		if len(text) > 0 {
			passages = append(passages, entities.Passage{
				ID:         PassageID(doc.ID, index),
				DocumentID: doc.ID,
				Text:       text,
				Index:      index,
			})
			index++
		}

		if end >= len(content) {
			break
		}
		next := end - uc.chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}

	return passages
}

// DocumentID derives a stable document ID from a source key.
func DocumentID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// PassageID derives a stable passage ID from its document and position.
func PassageID(docID string, index int) string {
	return uuid.NewSHA1(passageNamespace, []byte(docID+"#"+strconv.Itoa(index))).String()
}
