package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tokensmith/internal/platform/logger"
)

// TxFn is the body of a transaction. Returning an error rolls it back.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction runs fn in one transaction on db, labelled with the entity
// and operation it serves (for example "batch", "update_progress"). The
// transaction commits when fn returns nil and rolls back when fn returns an
// error or panics; panics are re-raised after the rollback.
//
// fn's own error is returned unchanged so callers can still match sentinels
// such as ErrBatchNotFound. Begin, commit and rollback failures come back as
// a *StoreError wrapping ErrTransactionFailed.
func RunInTransaction(ctx context.Context, db *sql.DB, entity, operation string, fn TxFn) error {
	log := logger.FromContext(ctx).With(
		slog.String("entity", entity),
		slog.String("operation", operation))

	fail := func(message string, err error) error {
		return NewStoreError(entity, operation, message, fmt.Errorf("%w: %w", ErrTransactionFailed, err))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", slog.String("error", err.Error()))
		return fail("failed to begin transaction", err)
	}

	defer func() {
		p := recover()
		if p == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("failed to roll back transaction after panic",
				slog.String("error", rbErr.Error()),
				slog.Any("panic", p))
		} else {
			log.Error("rolled back transaction after panic", slog.Any("panic", p))
		}
		panic(p)
	}()

	if fnErr := fn(ctx, tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rbErr.Error()),
				slog.String("original_error", fnErr.Error()))
			return errors.Join(fnErr, fail("failed to roll back transaction", rbErr))
		}
		log.Debug("rolled back transaction", slog.String("error", fnErr.Error()))
		return fnErr
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", slog.String("error", err.Error()))
		return fail("failed to commit transaction", err)
	}
	return nil
}
