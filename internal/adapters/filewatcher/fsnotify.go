// Package filewatcher provides file system monitoring adapters.
// Clean Architecture: Adapter implementing ports.FileWatcher.
package filewatcher

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
)

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
// It watches a directory rather than single files so editors that save by
// rename-and-replace still produce events.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string        // e.g. ".txt", ".md"
	names      map[string]bool // exact base names; overrides extensions when set
	logger     *zap.Logger
}

// Option configures an FSNotifyWatcher.
type Option func(*FSNotifyWatcher)

// WithExtensions limits events to files with these extensions.
func WithExtensions(exts ...string) Option {
	return func(w *FSNotifyWatcher) { w.extensions = exts }
}

// WithFiles limits events to files with these base names.
func WithFiles(names ...string) Option {
	return func(w *FSNotifyWatcher) {
		w.names = make(map[string]bool, len(names))
		for _, n := range names {
			w.names[filepath.Base(n)] = true
		}
	}
}

// WithLogger sets the logger used for watcher errors.
func WithLogger(l *zap.Logger) Option {
	return func(w *FSNotifyWatcher) { w.logger = l }
}

// NewFSNotifyWatcher creates a new file watcher.
func NewFSNotifyWatcher(opts ...Option) (*FSNotifyWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FSNotifyWatcher{
		watcher:    fw,
		extensions: []string{".txt", ".md"},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch starts monitoring the directory and emits events until ctx is done
// or the watcher is stopped.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.matches(event.Name) {
					continue
				}

				op, ok := operation(event.Op)
				if !ok {
					continue
				}

				select {
				case events <- ports.FileEvent{Path: event.Name, Operation: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("file watcher error", zap.String("dir", dir), zap.Error(err))
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

func operation(op fsnotify.Op) (ports.FileOperation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ports.FileCreated, true
	case op.Has(fsnotify.Write):
		return ports.FileModified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ports.FileDeleted, true
	default:
		return 0, false
	}
}

func (w *FSNotifyWatcher) matches(path string) bool {
	if len(w.names) > 0 {
		return w.names[filepath.Base(path)]
	}
	ext := filepath.Ext(path)
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
