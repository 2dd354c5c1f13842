// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
package ports

import (
	"context"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// RuleSource supplies an ordered sequence of canonical rules.
// Legacy record shapes are normalized inside the adapter; callers only see entities.Rule.
type RuleSource interface {
	// Name identifies the source in logs.
	Name() string

	// Load returns the full rule list. Order is significant.
	Load(ctx context.Context) ([]entities.Rule, error)
}

// Annotator produces sentence/token/POS/dependency data for a text.
// Offsets in the returned view are relative to text.
type Annotator interface {
	Annotate(ctx context.Context, text string) (*entities.AnnotationView, error)
}

// DocumentLoader reads and extracts text from documents on disk.
type DocumentLoader interface {
	// Load reads a document from the given path.
	Load(ctx context.Context, path string) (*entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
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
