// Package loader reads reference notes, keyword lists and embedding files.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/usecases"
)

// TextLoader loads plain text notes (.txt, .md).
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text document from the given path. The document ID is
// derived from the absolute path so reloading a file replaces its passages.
func (l *TextLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	if !l.Supports(path) {
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	return &entities.Document{
		ID:        DocumentIDForPath(abs),
		Title:     filepath.Base(abs),
		Source:    abs,
		Content:   string(content),
		CreatedAt: info.ModTime(),
	}, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// Supports reports whether path has a supported extension.
func (l *TextLoader) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range l.SupportedExtensions() {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadDir loads every supported file directly inside dir.
func (l *TextLoader) LoadDir(ctx context.Context, dir string) ([]*entities.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var docs []*entities.Document
	for _, e := range entries {
		if e.IsDir() || !l.Supports(e.Name()) {
			continue
		}
		doc, err := l.Load(ctx, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DocumentIDForPath is the document ID a file at path is stored under.
func DocumentIDForPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return usecases.DocumentID("file:" + path)
}
