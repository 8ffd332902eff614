package upload

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/debemdeboas/newsroom/internal/config"
)

// Preview is a compressed image served locally before it is uploaded.
type Preview struct {
	ID          string
	URL         string
	Data        []byte
	ContentType string
	Created     time.Time
}

// PreviewStore holds previews until they are revoked. The least recently
// used preview is dropped once the store is full.
type PreviewStore struct {
	cache *lru.Cache[string, *Preview]
}

func NewPreviewStore(capacity int) (*PreviewStore, error) {
	if capacity <= 0 {
		capacity = 64
	}
	cache, err := lru.NewWithEvict(capacity, func(id string, _ *Preview) {
		uploadLogger.Debug().Str("preview_id", id).Msg("Preview released")
	})
	if err != nil {
		return nil, fmt.Errorf("creating preview store: %w", err)
	}
	return &PreviewStore{cache: cache}, nil
}

func (s *PreviewStore) Create(data []byte, contentType string) *Preview {
	id := uuid.NewString()
	p := &Preview{
		ID:          id,
		URL:         config.PreviewsUrlPath + id,
		Data:        data,
		ContentType: contentType,
		Created:     time.Now(),
	}
	s.cache.Add(id, p)
	return p
}

func (s *PreviewStore) Get(id string) (*Preview, bool) {
	return s.cache.Get(id)
}

// Revoke releases a preview. It reports whether the preview was held.
func (s *PreviewStore) Revoke(id string) bool {
	return s.cache.Remove(id)
}

func (s *PreviewStore) Len() int {
	return s.cache.Len()
}
