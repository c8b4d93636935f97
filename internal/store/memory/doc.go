// Package memory provides in-memory implementations of the store interfaces.
// They enforce the same invariants as the Postgres stores (one active job per
// subject and dedup group, compare-and-set status updates, bounded batch
// counters) and back the test suites and local runs without a database.
package memory
