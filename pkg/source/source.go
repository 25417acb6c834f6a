// Package source abstracts where file content is read from so the
// engine can run against the filesystem, an in-memory corpus, or
// anything else that can produce bytes for a path.
package source

import (
	"fmt"
	"os"
)

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// FilesystemSource reads files from the local filesystem.
type FilesystemSource struct{}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// MapSource serves content from an in-memory map keyed by path. Useful
// for tests and for remediating editor buffers that are not on disk
// yet. The map must not be mutated while the source is in use.
type MapSource struct {
	files map[string]string
}

// NewMap creates a source backed by the given path-to-content map.
func NewMap(files map[string]string) *MapSource {
	return &MapSource{files: files}
}

// Read implements ContentSource.
func (m *MapSource) Read(path string) ([]byte, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return []byte(content), nil
}

// Paths returns every path the source can serve, in map order.
func (m *MapSource) Paths() []string {
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	return paths
}
