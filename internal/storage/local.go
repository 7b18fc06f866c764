package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore serves documents from a directory on the local filesystem and
// doubles as the development upload backend.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root must not be empty")
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &LocalStore{root: root}, nil
}

func (s *LocalStore) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.root, path)
}

// Exists reports whether the file is present.
func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(s.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Size returns the file size in bytes.
func (s *LocalStore) Size(ctx context.Context, path string) (int64, error) {
	info, err := os.Stat(s.resolve(path))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// OpenRead opens the file for reading.
func (s *LocalStore) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	return os.Open(s.resolve(path))
}

// Upload writes the stream under the storage root and returns the stored path.
func (s *LocalStore) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == "/" || base == "" {
		base = "document"
	}

	stored := filepath.Join(s.root, uuid.NewString()+"-"+sanitizeName(base))
	file, err := os.Create(stored)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return stored, nil
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
