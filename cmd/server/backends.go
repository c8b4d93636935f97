package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tokensmith/internal/config"
	"github.com/phrazzld/tokensmith/internal/platform/objectstore"
	"github.com/phrazzld/tokensmith/internal/platform/postgres"
	"github.com/phrazzld/tokensmith/internal/store"
	"github.com/phrazzld/tokensmith/internal/store/memory"
)

// backends are the storage implementations the application runs on.
type backends struct {
	jobs    store.JobStore
	batches store.BatchStore
	styles  store.StyleStore
	cache   store.CacheStore
	images  store.ImageStore
	db      *sql.DB
}

// openBackends connects to Postgres and, when configured, S3-compatible
// object storage. Without a storage endpoint objects stay in memory.
func openBackends(ctx context.Context, cfg *config.Config, log *slog.Logger, migrate bool) (*backends, error) {
	db, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	log.Info("database connection established")

	if migrate {
		if err := postgres.Migrate(ctx, db, log, "up"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	b := &backends{
		jobs:    postgres.NewPostgresJobStore(db, log),
		batches: postgres.NewPostgresBatchStore(db, log),
		styles:  postgres.NewPostgresStyleStore(db, log),
		cache:   postgres.NewPostgresCacheStore(db, log),
		db:      db,
	}

	if cfg.Storage.Endpoint == "" {
		log.Warn("no storage endpoint configured, keeping objects in memory")
		b.images = memory.NewImageStore()
		return b, nil
	}

	objects, err := objectstore.New(cfg.Storage, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare bucket: %w", err)
	}
	b.images = objects
	return b, nil
}

// newMemoryBackends keeps everything in process memory.
func newMemoryBackends(log *slog.Logger) *backends {
	log.Warn("running with in-memory storage, state is lost on exit")
	return &backends{
		jobs:    memory.NewJobStore(),
		batches: memory.NewBatchStore(),
		styles:  memory.NewStyleStore(),
		cache:   memory.NewCacheStore(),
		images:  memory.NewImageStore(),
	}
}

// Close releases the database pool, if any.
func (b *backends) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
