package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
)

// StyleStore defines the interface for style persistence, including the two
// read-only discovery queries the background scheduler runs.
type StyleStore interface {
	// CreateStyle saves a new style.
	CreateStyle(ctx context.Context, style *domain.Style) error

	// GetStyle retrieves a style by ID.
	// Returns ErrStyleNotFound if the style does not exist.
	GetStyle(ctx context.Context, id uuid.UUID) (*domain.Style, error)

	// ListStyles returns up to limit styles, newest first.
	ListStyles(ctx context.Context, limit int) ([]*domain.Style, error)

	// UpdateName sets the style's display name.
	UpdateName(ctx context.Context, id uuid.UUID, name string) error

	// UpdateTokens stores the extracted token set and its content hash.
	UpdateTokens(ctx context.Context, id uuid.UUID, contentHash string, tokens json.RawMessage) error

	// UpdateAssets sets the asset status and the keys of generated assets.
	UpdateAssets(ctx context.Context, id uuid.UUID, status domain.AssetStatus, assetKeys []string) error

	// ListNameRepairCandidates returns styles whose name is a fallback or
	// placeholder value.
	ListNameRepairCandidates(ctx context.Context, limit int) ([]*domain.Style, error)

	// ListAssetCandidates returns styles whose asset status is missing, not
	// complete, or which carry fewer than expected assets.
	ListAssetCandidates(ctx context.Context, expected int, limit int) ([]*domain.Style, error)
}

// CacheStore persists content-addressed cache rows.
type CacheStore interface {
	// GetCacheEntry returns the row for key, expired or not.
	// Returns ErrCacheEntryNotFound on a miss.
	GetCacheEntry(ctx context.Context, key string) (*domain.CacheEntry, error)

	// UpsertCacheEntry inserts or replaces the row for entry.Key.
	UpsertCacheEntry(ctx context.Context, entry *domain.CacheEntry) error

	// DeleteCacheEntry removes the row for key. Missing rows are not an error.
	DeleteCacheEntry(ctx context.Context, key string) error

	// DeleteCacheEntriesByPrefix removes every row whose key starts with prefix
	// and returns the number removed.
	DeleteCacheEntriesByPrefix(ctx context.Context, prefix string) (int64, error)
}

// ImageStore is the object storage holding uploaded images and generated assets.
type ImageStore interface {
	// GetObject returns the bytes and content type stored at key.
	// Returns ErrObjectNotFound if nothing is stored there.
	GetObject(ctx context.Context, key string) ([]byte, string, error)

	// PutObject stores data at key, replacing any previous object.
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}
