package enrichment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists raw image bytes keyed by file name.
type FileStore interface {
	Save(fileName string, data []byte) error
	Load(fileName string) ([]byte, error)
	Remove(fileName string) error
}

// DiskStore stores media files in a flat directory.
type DiskStore struct {
	basePath string
}

// NewDiskStore creates the media directory if needed.
func NewDiskStore(basePath string) (*DiskStore, error) {
	if basePath == "" {
		basePath = "media"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory %s: %w", basePath, err)
	}
	return &DiskStore{basePath: basePath}, nil
}

// path resolves a file name inside the store, rejecting traversal outside it.
func (d *DiskStore) path(fileName string) (string, error) {
	cleaned := filepath.Base(filepath.Clean(fileName))
	if cleaned == "." || cleaned == ".." || strings.TrimSpace(cleaned) == "" {
		return "", fmt.Errorf("invalid media file name %q", fileName)
	}
	return filepath.Join(d.basePath, cleaned), nil
}

func (d *DiskStore) Save(fileName string, data []byte) error {
	p, err := d.path(fileName)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func (d *DiskStore) Load(fileName string) ([]byte, error) {
	p, err := d.path(fileName)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (d *DiskStore) Remove(fileName string) error {
	p, err := d.path(fileName)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
