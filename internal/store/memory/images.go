package memory

import (
	"context"
	"sync"

	"github.com/phrazzld/tokensmith/internal/store"
)

type object struct {
	data        []byte
	contentType string
}

// ImageStore implements store.ImageStore in memory. It is also the fallback
// object store when no S3 endpoint is configured.
type ImageStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

var _ store.ImageStore = (*ImageStore)(nil)

// NewImageStore creates an empty image store.
func NewImageStore() *ImageStore {
	return &ImageStore{objects: make(map[string]object)}
}

// GetObject implements store.ImageStore.
func (s *ImageStore) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, "", store.ErrObjectNotFound
	}
	return append([]byte(nil), obj.data...), obj.contentType, nil
}

// PutObject implements store.ImageStore.
func (s *ImageStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = object{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

// Keys returns every stored key.
func (s *ImageStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
