package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/cache"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/store"
)

// DefaultTTL is the lifetime of cached catalog reads.
const DefaultTTL = 5 * time.Minute

const (
	styleKeyPrefix = "styles:id:"
	listKeyPrefix  = "styles:list:"
)

// Catalog is the cached read path over the style store.
type Catalog struct {
	styles store.StyleStore
	byID   *cache.Ephemeral[*domain.Style]
	lists  *cache.Ephemeral[[]*domain.Style]
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a Catalog with its own ephemeral caches.
func New(styles store.StyleStore, ttl time.Duration, log *slog.Logger) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Catalog{
		styles: styles,
		byID:   cache.NewEphemeral[*domain.Style](ttl),
		lists:  cache.NewEphemeral[[]*domain.Style](ttl),
		ttl:    ttl,
		logger: log.With(slog.String("component", "catalog")),
	}
}

// ListStyles returns up to limit styles, newest first.
func (c *Catalog) ListStyles(ctx context.Context, limit int) ([]*domain.Style, error) {
	key := listKeyPrefix + strconv.Itoa(limit)
	if v, ok := c.lists.Get(key); ok {
		return v, nil
	}

	styles, err := c.styles.ListStyles(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list styles: %w", err)
	}
	c.lists.Set(key, styles, c.ttl)
	return styles, nil
}

// GetStyle returns one style. Missing styles are not cached.
func (c *Catalog) GetStyle(ctx context.Context, id uuid.UUID) (*domain.Style, error) {
	key := styleKeyPrefix + id.String()
	if v, ok := c.byID.Get(key); ok {
		return v, nil
	}

	style, err := c.styles.GetStyle(ctx, id)
	if err != nil {
		return nil, err
	}
	c.byID.Set(key, style, c.ttl)
	return style, nil
}

// Invalidate drops the cached style and every cached listing.
func (c *Catalog) Invalidate(ctx context.Context, id uuid.UUID) {
	c.byID.Delete(styleKeyPrefix + id.String())
	n := c.lists.DeletePrefix(listKeyPrefix)
	logger.FromContextOrDefault(ctx, c.logger).Debug("catalog invalidated",
		slog.String("style_id", id.String()),
		slog.Int("listings_dropped", n))
}
