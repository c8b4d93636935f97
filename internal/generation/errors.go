package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when a provider call fails for any general reason
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInvalidResponse is returned when the model response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from model")

	// ErrContentBlocked is returned when the model blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during generation")

	// ErrInvalidConfig is returned when the provider configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrPlaceholderName is returned when a namer answers with a fallback name
	ErrPlaceholderName = errors.New("suggested name is a placeholder")
)
