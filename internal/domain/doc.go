// Package domain contains the core entities of the token service: jobs and
// their state machine, batches with derived status, styles (the subjects
// jobs concern), extracted token sets and persistent cache entries. It has
// no dependencies on storage or transport.
package domain
