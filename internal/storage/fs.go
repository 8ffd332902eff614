package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSStore writes uploads below a local directory that the server exposes
// under its public base URL.
type FSStore struct {
	dir     string
	baseURL string
}

func NewFSStore(dir, baseURL string) *FSStore {
	return &FSStore{dir: dir, baseURL: baseURL}
}

func (s *FSStore) Dir() string {
	return s.dir
}

func (s *FSStore) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	key, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("moving upload into place: %w", err)
	}

	storageLogger.Debug().Str("path", key).Int("bytes", len(data)).Str("content_type", contentType).Msg("Stored upload on disk")
	return publicURL(s.baseURL, key), nil
}
