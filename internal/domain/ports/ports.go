// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"
	"errors"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
)

var (
	// ErrNotFound is returned when an external lookup has no result.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when an optional collaborator is not configured.
	ErrUnavailable = errors.New("service unavailable")
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMService generates chat completions from a language model.
type LLMService interface {
	// Complete returns the full answer for a conversation.
	Complete(ctx context.Context, req entities.CompletionRequest) (string, error)

	// CompleteStream returns the answer token by token. The channel is
	// closed after a token with Done set or an Error.
	CompleteStream(ctx context.Context, req entities.CompletionRequest) (<-chan StreamToken, error)
}

// StreamToken represents a single token in a streaming LLM response.
type StreamToken struct {
	Content string
	Done    bool
	Error   error
}

// KnowledgeStore persists embedded passages and searches them by similarity.
type KnowledgeStore interface {
	// Store saves passages with their embeddings, replacing equal IDs.
	Store(ctx context.Context, passages []entities.Passage) error

	// Search returns the topK passages most similar to embedding.
	Search(ctx context.Context, embedding []float32, topK int) ([]entities.Match, error)

	// Delete removes all passages of a document.
	Delete(ctx context.Context, documentID string) error

	// Clear removes everything.
	Clear(ctx context.Context) error

	// Count returns the number of stored passages.
	Count(ctx context.Context) (int, error)
}

// DocumentLoader reads reference documents from disk.
type DocumentLoader interface {
	Load(ctx context.Context, path string) (*entities.Document, error)
	SupportedExtensions() []string
}

// StructureService resolves a compound name to a 3D structure.
type StructureService interface {
	// Lookup returns ErrNotFound when the name has no compound identifier.
	Lookup(ctx context.Context, name string) (*entities.Structure, error)
}

// MoleculeRenderer draws a molecule given as SMILES.
type MoleculeRenderer interface {
	Render(ctx context.Context, smiles string) (*entities.Rendering, error)
	IsServiceHealthy(ctx context.Context) bool
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
