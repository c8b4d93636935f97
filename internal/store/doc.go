// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the job runner, scheduler and work functions. Postgres implementations live
// in internal/platform/postgres and in-memory ones in internal/store/memory.
package store
