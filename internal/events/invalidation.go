package events

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// StyleInvalidator drops the cached reads of one style.
type StyleInvalidator interface {
	Invalidate(ctx context.Context, styleID uuid.UUID)
}

// ListingInvalidator drops a cached listing.
type ListingInvalidator interface {
	Invalidate()
}

// CacheInvalidation returns a handler that drops the catalog entry of the
// job's subject and the recent-jobs listing.
func CacheInvalidation(styles StyleInvalidator, recent ListingInvalidator, log *slog.Logger) JobTerminalHandler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "cache_invalidation"))
	return func(ctx context.Context, ev JobTerminal) error {
		if recent != nil {
			recent.Invalidate()
		}
		if styles != nil && ev.SubjectID != nil {
			styles.Invalidate(ctx, *ev.SubjectID)
		}
		log.Debug("invalidated caches for terminal job",
			slog.String("job_id", ev.JobID.String()),
			slog.String("status", string(ev.Status)))
		return nil
	}
}
