// Package events carries job lifecycle events over an in-process watermill
// GoChannel so that components react to terminal jobs without the runner
// knowing about them.
//
// The primary components are:
// - JobTerminal: the payload published when a job reaches a terminal state
// - Bus: the publisher, subscriber and router for those events
// - CacheInvalidation: a handler that drops cached reads a job made stale
package events
