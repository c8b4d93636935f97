// Package api exposes job, batch and style operations over HTTP. Reads are
// public; operations that change job state require an operator JWT.
package api
