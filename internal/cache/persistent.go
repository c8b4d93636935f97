package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/store"
)

// DefaultPersistentTTL is the lifetime of a persistent cache row.
const DefaultPersistentTTL = 30 * 24 * time.Hour

// ContentHash returns the hex SHA-256 of the canonical payload bytes. Callers
// must pass decoded bytes (no data-URL prefix, no base64), so the same image
// always hashes the same regardless of how it was uploaded.
func ContentHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// SettingsDigest returns a short stable digest of analysis settings. Go's JSON
// encoder sorts map keys, which makes the encoding canonical for maps and
// structs alike.
func SettingsDigest(settings any) string {
	if settings == nil {
		return "default"
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return "default"
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:16]
}

// StepKey addresses the cached result of one pipeline step for one image and
// one settings variant.
type StepKey struct {
	Step           string
	Hash           string
	SettingsDigest string
}

// String renders the storage key. Steps of the same image share the
// "<hash>:<step>:" prefix so they can be invalidated together.
func (k StepKey) String() string {
	digest := k.SettingsDigest
	if digest == "" {
		digest = "default"
	}
	return stepPrefix(k.Hash, k.Step) + digest
}

func stepPrefix(hash, step string) string {
	return hash + ":" + step + ":"
}

// Persistent is the content-addressed cache backed by a store.CacheStore.
// Failures never propagate: a read error is a miss and a write error is
// logged and dropped.
type Persistent struct {
	store  store.CacheStore
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewPersistent creates a persistent cache. A non-positive ttl selects
// DefaultPersistentTTL.
func NewPersistent(s store.CacheStore, ttl time.Duration, logger *slog.Logger) *Persistent {
	if ttl <= 0 {
		ttl = DefaultPersistentTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Persistent{
		store:  s,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "persistent_cache")),
	}
}

// TTL returns the configured row lifetime.
func (p *Persistent) TTL() time.Duration {
	return p.ttl
}

// Get returns the whole-result entry for a content hash.
func (p *Persistent) Get(ctx context.Context, hash string) (*domain.CacheEntry, bool) {
	return p.get(ctx, hash)
}

// Set stores the whole-result value for a content hash.
func (p *Persistent) Set(
	ctx context.Context,
	hash string,
	value any,
	method string,
	processingTime time.Duration,
) {
	p.set(ctx, hash, value, method, processingTime)
}

// GetStep returns the cached result of one pipeline step.
func (p *Persistent) GetStep(ctx context.Context, key StepKey) (*domain.CacheEntry, bool) {
	return p.get(ctx, key.String())
}

// SetStep stores the result of one pipeline step.
func (p *Persistent) SetStep(
	ctx context.Context,
	key StepKey,
	value any,
	method string,
	processingTime time.Duration,
) {
	p.set(ctx, key.String(), value, method, processingTime)
}

// InvalidateStep drops every settings variant of one step for one image.
func (p *Persistent) InvalidateStep(ctx context.Context, step, hash string) int64 {
	n, err := p.store.DeleteCacheEntriesByPrefix(ctx, stepPrefix(hash, step))
	if err != nil {
		logger.FromContextOrDefault(ctx, p.logger).Warn("failed to invalidate cache step",
			slog.String("step", step),
			slog.String("hash", hash),
			slog.String("error", err.Error()))
		return 0
	}
	return n
}

// Decode unmarshals a cached value into dst.
func Decode(entry *domain.CacheEntry, dst any) error {
	if err := json.Unmarshal(entry.Value, dst); err != nil {
		return fmt.Errorf("failed to decode cache entry %s: %w", entry.Key, err)
	}
	return nil
}

func (p *Persistent) get(ctx context.Context, key string) (*domain.CacheEntry, bool) {
	log := logger.FromContextOrDefault(ctx, p.logger)

	entry, err := p.store.GetCacheEntry(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrCacheEntryNotFound) {
			log.Warn("persistent cache read failed, treating as miss",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return nil, false
	}

	if entry.Expired(p.now()) {
		if err := p.store.DeleteCacheEntry(ctx, key); err != nil {
			log.Warn("failed to purge expired cache entry",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return nil, false
	}
	return entry, true
}

func (p *Persistent) set(ctx context.Context, key string, value any, method string, processingTime time.Duration) {
	log := logger.FromContextOrDefault(ctx, p.logger)

	raw, err := json.Marshal(value)
	if err != nil {
		log.Warn("failed to encode cache value",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return
	}

	now := p.now()
	entry := &domain.CacheEntry{
		Key:              key,
		Value:            raw,
		Method:           method,
		ProcessingTimeMs: processingTime.Milliseconds(),
		CreatedAt:        now,
		ExpiresAt:        now.Add(p.ttl),
	}
	if err := p.store.UpsertCacheEntry(ctx, entry); err != nil {
		log.Warn("persistent cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}
