package imaging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Storage defines the file operations the exporter needs
type Storage interface {
	// Save atomically writes a file and returns its absolute path
	Save(filename string, data []byte) (string, error)

	// Exists reports whether filename is already present
	Exists(filename string) bool
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance rooted at the absolute
// form of basePath, creating the directory if needed.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolving storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: abs,
	}, nil
}

// Save writes to <name>.tmp and renames it into place, so a reader never
// observes a partially written file.
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	target := filepath.Join(l.basePath, filename)
	tmpPath := target + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp to target: %w", err)
	}
	return target, nil
}

// Exists reports whether filename is present in storage
func (l *LocalStorage) Exists(filename string) bool {
	_, err := os.Stat(filepath.Join(l.basePath, filename))
	return !errors.Is(err, fs.ErrNotExist)
}

// uniqueName returns name, or name with a -2, -3, ... suffix before the
// extension, such that it is neither taken in s nor in used.
func uniqueName(s Storage, name string, used map[string]bool) string {
	candidate := name
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; used[candidate] || s.Exists(candidate); n++ {
		candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
	used[candidate] = true
	return candidate
}
