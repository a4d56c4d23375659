// Package media persists uploaded source files under a deterministic path
// scheme so documents remain traceable and re-extractable after indexing.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DocCategory is the subdirectory for uploaded documents.
const DocCategory = "doc"

// Store writes uploaded files under <root>/<category>/<unixMillis><originalName>.
type Store struct {
	root string
	now  func() time.Time
}

// NewStore creates a Store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{root: root, now: time.Now}
}

// Save writes data to disk and returns the stored path relative to the media
// root, e.g. "doc/1700000000000report.pdf". The relative path is what
// document identity derives from.
func (s *Store) Save(originalName string, data []byte) (string, error) {
	dir := filepath.Join(s.root, DocCategory)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	rel := filepath.Join(DocCategory, fmt.Sprintf("%d%s", s.now().UnixMilli(), sanitizeName(originalName)))
	if err := os.WriteFile(filepath.Join(s.root, rel), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// FullPath resolves a stored relative path against the media root.
func (s *Store) FullPath(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Root returns the media root directory.
func (s *Store) Root() string {
	return s.root
}

// sanitizeName strips any path components from an uploaded filename and
// replaces separators so a hostile name cannot escape the media root.
func sanitizeName(name string) string {
	name = filepath.Base(filepath.Clean(name))
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	if name == "." || name == ".." || name == "" {
		name = "upload"
	}
	return name
}
