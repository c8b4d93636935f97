// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package, plus the embedded
// goose migrations that create their tables.
//
// Connections go through database/sql with the pgx stdlib driver. The
// one-active-job-per-subject rule is enforced by a partial unique index and
// surfaces as store.ErrActiveJobExists.
package postgres
