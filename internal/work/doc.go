// Package work holds the work functions run by the job runner: style name
// repair, derived asset generation, token analysis, previews and batch
// imports. Each function is one attempt; retries and timeouts belong to the
// runner.
package work
