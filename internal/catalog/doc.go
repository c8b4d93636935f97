// Package catalog serves style reads through the ephemeral cache and owns
// the cache keys that write paths invalidate.
package catalog
