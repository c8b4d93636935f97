package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/store"
)

const styleColumns = `id, name, image_key, content_hash, tokens, asset_status, asset_keys,
	created_at, updated_at`

// PostgresStyleStore implements the store.StyleStore interface.
type PostgresStyleStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresStyleStore creates a new PostgreSQL implementation of the StyleStore interface.
func NewPostgresStyleStore(db store.DBTX, logger *slog.Logger) *PostgresStyleStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStyleStore{
		db:     db,
		logger: logger.With(slog.String("component", "style_store")),
	}
}

var _ store.StyleStore = (*PostgresStyleStore)(nil)

func scanStyle(row rowScanner) (*domain.Style, error) {
	var (
		style       domain.Style
		contentHash sql.NullString
		tokens      []byte
		assetKeys   []byte
	)
	err := row.Scan(
		&style.ID,
		&style.Name,
		&style.ImageKey,
		&contentHash,
		&tokens,
		&style.AssetStatus,
		&assetKeys,
		&style.CreatedAt,
		&style.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	style.ContentHash = contentHash.String
	if len(tokens) > 0 {
		style.Tokens = json.RawMessage(tokens)
	}
	style.AssetKeys = []string{}
	if len(assetKeys) > 0 {
		if err := json.Unmarshal(assetKeys, &style.AssetKeys); err != nil {
			return nil, store.NewStoreError("style", "read", "failed to decode asset keys", err)
		}
	}
	return &style, nil
}

// CreateStyle implements store.StyleStore.CreateStyle
func (s *PostgresStyleStore) CreateStyle(ctx context.Context, style *domain.Style) error {
	if style.ID == uuid.Nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrEmptyStyleID)
	}
	if style.ImageKey == "" {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrEmptyImageKey)
	}

	keys := style.AssetKeys
	if keys == nil {
		keys = []string{}
	}
	assetKeys, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to encode asset keys: %w", err)
	}
	var tokens []byte
	if len(style.Tokens) > 0 {
		tokens = style.Tokens
	}

	query := `
		INSERT INTO styles (id, name, image_key, content_hash, tokens, asset_status, asset_keys,
			created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		style.ID,
		style.Name,
		style.ImageKey,
		style.ContentHash,
		tokens,
		string(style.AssetStatus),
		assetKeys,
		style.CreatedAt,
		style.UpdatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create style",
			slog.String("error", err.Error()),
			slog.String("style_id", style.ID.String()))
		return MapError(err)
	}
	return nil
}

// GetStyle implements store.StyleStore.GetStyle
func (s *PostgresStyleStore) GetStyle(ctx context.Context, id uuid.UUID) (*domain.Style, error) {
	query := `SELECT ` + styleColumns + ` FROM styles WHERE id = $1`
	style, err := scanStyle(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrStyleNotFound
		}
		return nil, MapError(err)
	}
	return style, nil
}

// ListStyles implements store.StyleStore.ListStyles
func (s *PostgresStyleStore) ListStyles(ctx context.Context, limit int) ([]*domain.Style, error) {
	query := `SELECT ` + styleColumns + `
		FROM styles
		ORDER BY created_at DESC, id
		LIMIT $1`
	return s.list(ctx, query, limit)
}

// UpdateName implements store.StyleStore.UpdateName
func (s *PostgresStyleStore) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	return s.exec(ctx, `UPDATE styles SET name = $2, updated_at = $3 WHERE id = $1`,
		id, name, time.Now().UTC())
}

// UpdateTokens implements store.StyleStore.UpdateTokens
func (s *PostgresStyleStore) UpdateTokens(
	ctx context.Context,
	id uuid.UUID,
	contentHash string,
	tokens json.RawMessage,
) error {
	return s.exec(ctx,
		`UPDATE styles SET content_hash = $2, tokens = $3, updated_at = $4 WHERE id = $1`,
		id, contentHash, []byte(tokens), time.Now().UTC())
}

// UpdateAssets implements store.StyleStore.UpdateAssets
// A nil assetKeys leaves the stored keys unchanged.
func (s *PostgresStyleStore) UpdateAssets(
	ctx context.Context,
	id uuid.UUID,
	status domain.AssetStatus,
	assetKeys []string,
) error {
	var keys []byte
	if assetKeys != nil {
		encoded, err := json.Marshal(assetKeys)
		if err != nil {
			return fmt.Errorf("failed to encode asset keys: %w", err)
		}
		keys = encoded
	}
	return s.exec(ctx,
		`UPDATE styles
		SET asset_status = $2, asset_keys = COALESCE($3::jsonb, asset_keys), updated_at = $4
		WHERE id = $1`,
		id, string(status), keys, time.Now().UTC())
}

// ListNameRepairCandidates implements store.StyleStore.ListNameRepairCandidates
// It mirrors domain.IsPlaceholderName server-side.
func (s *PostgresStyleStore) ListNameRepairCandidates(ctx context.Context, limit int) ([]*domain.Style, error) {
	query := `SELECT ` + styleColumns + `
		FROM styles
		WHERE btrim(name) = ''
			OR btrim(name) ~ $1
			OR lower(btrim(name)) = id::text
			OR btrim(name) ~* $2
		ORDER BY created_at ASC
		LIMIT $3`
	return s.list(ctx, query, domain.UUIDNamePattern, domain.FallbackNamePattern, limit)
}

// ListAssetCandidates implements store.StyleStore.ListAssetCandidates
func (s *PostgresStyleStore) ListAssetCandidates(ctx context.Context, expected, limit int) ([]*domain.Style, error) {
	query := `SELECT ` + styleColumns + `
		FROM styles
		WHERE asset_status <> 'complete'
			OR jsonb_array_length(asset_keys) < $1
		ORDER BY created_at ASC
		LIMIT $2`
	return s.list(ctx, query, expected, limit)
}

func (s *PostgresStyleStore) exec(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update style",
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrStyleNotFound)
}

func (s *PostgresStyleStore) list(ctx context.Context, query string, args ...any) ([]*domain.Style, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to query styles",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	styles := []*domain.Style{}
	for rows.Next() {
		style, err := scanStyle(rows)
		if err != nil {
			return nil, store.NewStoreError("style", "list", "failed to scan style row", err)
		}
		styles = append(styles, style)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("style", "list", "error iterating style rows", err)
	}
	return styles, nil
}
