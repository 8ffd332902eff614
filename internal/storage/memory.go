package storage

import (
	"context"
	"slices"
	"sync"
)

type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps uploads in memory. Fail, when set, is returned by the
// next uploads instead of storing anything.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]Object
	calls   int

	Fail error
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, objects: make(map[string]Object)}
}

func (s *MemoryStore) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if s.Fail != nil {
		return "", s.Fail
	}
	key, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.objects[key] = Object{Data: slices.Clone(data), ContentType: contentType}
	return publicURL(s.baseURL, key), nil
}

func (s *MemoryStore) SetFail(err error) {
	s.mu.Lock()
	s.Fail = err
	s.mu.Unlock()
}

func (s *MemoryStore) Get(path string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	return obj, ok
}

// Keys returns the stored paths in order.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Calls counts every Upload, failed or not.
func (s *MemoryStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
