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

// Store abstracts access to submitted documents. Implementations may be
// backed by a local directory or a remote object host; the pipeline never
// assumes a path is directly usable on the local filesystem.
type Store interface {
	Exists(ctx context.Context, path string) (bool, error)
	Size(ctx context.Context, path string) (int64, error)
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)
}

// Stage copies the object at path into dir and returns the local file path.
// Workers stage remote documents to a scratch directory before handing them
// to the extraction tool.
func Stage(ctx context.Context, store Store, path, dir string) (string, error) {
	reader, err := store.OpenRead(ctx, path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer reader.Close()

	name := filepath.Base(path)
	if name == "." || name == "/" || name == "" {
		name = uuid.NewString()
	}

	local := filepath.Join(dir, name)
	file, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return "", fmt.Errorf("stage %s: %w", path, err)
	}

	return local, nil
}

// IsRemote reports whether the path refers to an object behind HTTP.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}
