// Package storage puts uploaded images where readers can fetch them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/newsroom/internal/config"
)

var storageLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	storageLogger = l
}

var (
	ErrEmptyPath     = errors.New("object path is required")
	ErrNotConfigured = errors.New("storage backend is not configured")
)

// ImageStore uploads a blob under path and returns its public URL.
type ImageStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (ImageStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "fs":
		return NewFSStore(cfg.LocalDir, cfg.PublicBaseURL), nil
	case "s3":
		return NewS3Store(ctx, cfg)
	case "minio":
		return NewMinioStore(cfg)
	case "memory":
		return NewMemoryStore(cfg.PublicBaseURL), nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", ErrNotConfigured, cfg.Backend)
}

func cleanPath(path string) (string, error) {
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "" {
		return "", ErrEmptyPath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." || seg == "." {
			return "", fmt.Errorf("invalid object path %q", path)
		}
	}
	return path, nil
}

func publicURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + path
}
