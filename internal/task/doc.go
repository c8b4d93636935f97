// Package task runs persisted jobs in the background. It owns the retry and
// timeout policy of a single job (Runner), bounded process-wide concurrency
// (Limiter), job admission, cancellation and manual retry (Dispatcher), and
// batch aggregation (BatchService). Jobs survive restarts: Dispatcher.Recover
// resets jobs left running by a dead process and dispatches every queued job.
package task
