package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/store"
)

// StyleStore implements store.StyleStore.
type StyleStore struct {
	mu     sync.Mutex
	styles map[uuid.UUID]*domain.Style

	// ListNameRepairCandidatesFn and ListAssetCandidatesFn override the
	// discovery queries, e.g. to simulate a failing query.
	ListNameRepairCandidatesFn func(ctx context.Context, limit int) ([]*domain.Style, error)
	ListAssetCandidatesFn      func(ctx context.Context, expected, limit int) ([]*domain.Style, error)
}

var _ store.StyleStore = (*StyleStore)(nil)

// NewStyleStore creates an empty style store.
func NewStyleStore() *StyleStore {
	return &StyleStore{styles: make(map[uuid.UUID]*domain.Style)}
}

func cloneStyle(s *domain.Style) *domain.Style {
	c := *s
	c.Tokens = append(json.RawMessage(nil), s.Tokens...)
	c.AssetKeys = append([]string{}, s.AssetKeys...)
	return &c
}

// CreateStyle implements store.StyleStore.
func (s *StyleStore) CreateStyle(ctx context.Context, style *domain.Style) error {
	if style.ID == uuid.Nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrEmptyStyleID)
	}
	if style.ImageKey == "" {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrEmptyImageKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.styles[style.ID]; exists {
		return store.ErrDuplicate
	}
	s.styles[style.ID] = cloneStyle(style)
	return nil
}

// GetStyle implements store.StyleStore.
func (s *StyleStore) GetStyle(ctx context.Context, id uuid.UUID) (*domain.Style, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	style, ok := s.styles[id]
	if !ok {
		return nil, store.ErrStyleNotFound
	}
	return cloneStyle(style), nil
}

// ListStyles implements store.StyleStore.
func (s *StyleStore) ListStyles(ctx context.Context, limit int) ([]*domain.Style, error) {
	return s.list(limit, func(*domain.Style) bool { return true }), nil
}

// UpdateName implements store.StyleStore.
func (s *StyleStore) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	return s.mutate(id, func(style *domain.Style) {
		style.Name = name
	})
}

// UpdateTokens implements store.StyleStore.
func (s *StyleStore) UpdateTokens(ctx context.Context, id uuid.UUID, contentHash string, tokens json.RawMessage) error {
	return s.mutate(id, func(style *domain.Style) {
		style.ContentHash = contentHash
		style.Tokens = append(json.RawMessage(nil), tokens...)
	})
}

// UpdateAssets implements store.StyleStore.
func (s *StyleStore) UpdateAssets(
	ctx context.Context,
	id uuid.UUID,
	status domain.AssetStatus,
	assetKeys []string,
) error {
	return s.mutate(id, func(style *domain.Style) {
		style.AssetStatus = status
		if assetKeys != nil {
			style.AssetKeys = append([]string{}, assetKeys...)
		}
	})
}

// ListNameRepairCandidates implements store.StyleStore.
func (s *StyleStore) ListNameRepairCandidates(ctx context.Context, limit int) ([]*domain.Style, error) {
	if s.ListNameRepairCandidatesFn != nil {
		return s.ListNameRepairCandidatesFn(ctx, limit)
	}
	return s.list(limit, (*domain.Style).NeedsNameRepair), nil
}

// ListAssetCandidates implements store.StyleStore.
func (s *StyleStore) ListAssetCandidates(ctx context.Context, expected, limit int) ([]*domain.Style, error) {
	if s.ListAssetCandidatesFn != nil {
		return s.ListAssetCandidatesFn(ctx, expected, limit)
	}
	return s.list(limit, func(style *domain.Style) bool { return style.NeedsAssets(expected) }), nil
}

func (s *StyleStore) mutate(id uuid.UUID, fn func(*domain.Style)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	style, ok := s.styles[id]
	if !ok {
		return store.ErrStyleNotFound
	}
	fn(style)
	style.UpdatedAt = time.Now().UTC()
	return nil
}

// list returns matching styles, newest first.
func (s *StyleStore) list(limit int, keep func(*domain.Style) bool) []*domain.Style {
	s.mu.Lock()
	out := make([]*domain.Style, 0, len(s.styles))
	for _, style := range s.styles {
		if keep(style) {
			out = append(out, cloneStyle(style))
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID.String() < out[b].ID.String()
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
