package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/debemdeboas/newsroom/internal/config"
)

// MinioStore uploads to a MinIO server, creating the bucket on first use.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	region  string
	baseURL string

	initOnce sync.Once
	initErr  error
}

func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: minio endpoint is required", ErrNotConfigured)
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("%w: minio access key and secret key are required", ErrNotConfigured)
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("%w: minio bucket is required", ErrNotConfigured)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" || region == "auto" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" || strings.HasPrefix(baseURL, "/") {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = scheme + "://" + endpoint + "/" + bucket
	}

	return &MinioStore{client: client, bucket: bucket, region: region, baseURL: baseURL}, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *MinioStore) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	key, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("putting %s: %w", key, err)
	}

	storageLogger.Info().Str("bucket", s.bucket).Str("key", key).Int("bytes", len(data)).Msg("Uploaded image to MinIO")
	return publicURL(s.baseURL, key), nil
}
