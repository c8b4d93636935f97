package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/store"
)

// CacheStore implements store.CacheStore.
type CacheStore struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry

	// GetErr, when set, is returned by every GetCacheEntry call.
	GetErr error
}

var _ store.CacheStore = (*CacheStore)(nil)

// NewCacheStore creates an empty cache store.
func NewCacheStore() *CacheStore {
	return &CacheStore{entries: make(map[string]*domain.CacheEntry)}
}

// GetCacheEntry implements store.CacheStore.
func (s *CacheStore) GetCacheEntry(ctx context.Context, key string) (*domain.CacheEntry, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, store.ErrCacheEntryNotFound
	}
	c := *entry
	c.Value = append(json.RawMessage(nil), entry.Value...)
	return &c, nil
}

// UpsertCacheEntry implements store.CacheStore.
func (s *CacheStore) UpsertCacheEntry(ctx context.Context, entry *domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *entry
	c.Value = append(json.RawMessage(nil), entry.Value...)
	s.entries[entry.Key] = &c
	return nil
}

// DeleteCacheEntry implements store.CacheStore.
func (s *CacheStore) DeleteCacheEntry(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// DeleteCacheEntriesByPrefix implements store.CacheStore.
func (s *CacheStore) DeleteCacheEntriesByPrefix(ctx context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored rows, expired or not.
func (s *CacheStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
