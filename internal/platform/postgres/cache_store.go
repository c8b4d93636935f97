package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/store"
)

// PostgresCacheStore implements the store.CacheStore interface over the
// token_cache table.
type PostgresCacheStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCacheStore creates a new PostgreSQL implementation of the CacheStore interface.
func NewPostgresCacheStore(db store.DBTX, logger *slog.Logger) *PostgresCacheStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCacheStore{
		db:     db,
		logger: logger.With(slog.String("component", "cache_store")),
	}
}

var _ store.CacheStore = (*PostgresCacheStore)(nil)

// GetCacheEntry implements store.CacheStore.GetCacheEntry
func (s *PostgresCacheStore) GetCacheEntry(ctx context.Context, key string) (*domain.CacheEntry, error) {
	query := `
		SELECT key, value, method, processing_time_ms, created_at, expires_at
		FROM token_cache
		WHERE key = $1
	`
	var (
		entry domain.CacheEntry
		value []byte
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&entry.Key,
		&value,
		&entry.Method,
		&entry.ProcessingTimeMs,
		&entry.CreatedAt,
		&entry.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCacheEntryNotFound
		}
		return nil, MapError(err)
	}
	entry.Value = value
	return &entry, nil
}

// UpsertCacheEntry implements store.CacheStore.UpsertCacheEntry
func (s *PostgresCacheStore) UpsertCacheEntry(ctx context.Context, entry *domain.CacheEntry) error {
	query := `
		INSERT INTO token_cache (key, value, method, processing_time_ms, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			method = EXCLUDED.method,
			processing_time_ms = EXCLUDED.processing_time_ms,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.Key,
		[]byte(entry.Value),
		entry.Method,
		entry.ProcessingTimeMs,
		entry.CreatedAt,
		entry.ExpiresAt,
	)
	return MapError(err)
}

// DeleteCacheEntry implements store.CacheStore.DeleteCacheEntry
func (s *PostgresCacheStore) DeleteCacheEntry(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM token_cache WHERE key = $1`, key)
	return MapError(err)
}

// DeleteCacheEntriesByPrefix implements store.CacheStore.DeleteCacheEntriesByPrefix
func (s *PostgresCacheStore) DeleteCacheEntriesByPrefix(ctx context.Context, prefix string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM token_cache WHERE left(key, length($1::text)) = $1::text`, prefix)
	if err != nil {
		return 0, MapError(err)
	}
	return result.RowsAffected()
}
