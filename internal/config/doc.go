// Package config handles configuration loading, parsing, and validation
// from environment variables, an optional YAML file and a local .env file.
// Every setting has a TOKENSMITH_ environment variable, e.g.
// TOKENSMITH_JOBS_CONCURRENCY for jobs.concurrency.
package config
