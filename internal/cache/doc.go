// Package cache provides the two cache tiers: an in-process TTL cache for
// frequently read listings and a persistent content-addressed cache for
// expensive image-analysis results.
package cache
