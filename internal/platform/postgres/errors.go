package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/store"
)

// PostgreSQL error codes
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	notNullViolationCode    = "23502"
)

// constraintErrors maps schema constraints to the error they signal.
// Violations of constraints not listed here fall back to the generic
// ErrDuplicate or ErrInvalidEntity for their error code.
var constraintErrors = map[string]error{
	activeJobConstraint:    store.ErrActiveJobExists,
	"jobs_batch_id_fkey":   store.ErrBatchNotFound,
	"jobs_retry_check":     domain.ErrRetryBudgetExceeded,
	"batches_counts_check": domain.ErrBatchOverflow,
}

// MapError translates a database error into the store's error vocabulary.
// The driver error stays in the message; sql.ErrNoRows becomes ErrNotFound
// and constraint violations are matched by constraint name first, then by
// code. Anything else is returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	if target, ok := constraintErrors[pgErr.ConstraintName]; ok {
		return fmt.Errorf("%w: %s: %v", target, pgErr.ConstraintName, err)
	}

	switch pgErr.Code {
	case uniqueViolationCode:
		return fmt.Errorf("%w: %s: %v", store.ErrDuplicate, pgErr.ConstraintName, err)
	case foreignKeyViolationCode, checkViolationCode:
		return fmt.Errorf("%w: constraint %s: %v", store.ErrInvalidEntity, pgErr.ConstraintName, err)
	case notNullViolationCode:
		return fmt.Errorf("%w: column %s is required: %v", store.ErrInvalidEntity, pgErr.ColumnName, err)
	}
	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// CheckRowsAffected returns notFound (store.ErrNotFound when nil) if result
// touched no rows. UPDATE and DELETE statements keyed by ID use it to detect
// a missing record.
func CheckRowsAffected(result sql.Result, notFound error) error {
	if result == nil {
		return errors.New("nil result provided to CheckRowsAffected")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if notFound == nil {
		return store.ErrNotFound
	}
	return notFound
}
