// Package scheduler runs periodic maintenance cycles that discover styles
// needing background work and enqueue one job per candidate, skipping
// subjects that already have an active job in the same dedup group.
package scheduler
