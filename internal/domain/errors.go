package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidTransition is returned when a job status change is not
	// allowed by the job state machine.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrNotRetryable is returned when a retry is requested for a job that is
	// not failed or canceled, or has exhausted its retry budget.
	ErrNotRetryable = errors.New("job cannot be retried")
)
