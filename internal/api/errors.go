package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/tokensmith/internal/api/shared"
	"github.com/phrazzld/tokensmith/internal/auth"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/store"
	"github.com/phrazzld/tokensmith/internal/task"
	"github.com/phrazzld/tokensmith/internal/work"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes so that
// error types never leak to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// ErrActiveJobExists wraps ErrDuplicate
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrStatusConflict),
		errors.Is(err, domain.ErrNotRetryable):
		return http.StatusConflict

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, work.ErrInvalidInput),
		errors.Is(err, task.ErrUnknownJobType),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	case errors.Is(err, task.ErrDispatcherClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"
	case errors.Is(err, store.ErrBatchNotFound):
		return "Batch not found"
	case errors.Is(err, store.ErrStyleNotFound):
		return "Style not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrActiveJobExists):
		return "An active job already exists for this subject"
	case errors.Is(err, domain.ErrNotRetryable):
		return "Job cannot be retried"
	case errors.Is(err, store.ErrStatusConflict):
		return "Job changed state concurrently"
	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, task.ErrUnknownJobType):
		return "Unsupported job type"
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, work.ErrInvalidInput):
		return "Invalid request"

	case errors.Is(err, task.ErrDispatcherClosed):
		return "Service is shutting down"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator output into a short message that
// names the first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", jsonFieldName(fe.Namespace()), validationTagMessage(fe.Tag()))
}

// jsonFieldName drops the top-level struct name from a validator namespace,
// e.g. "CreateBatchRequest.Items[0].ImageKey" becomes "Items[0].ImageKey".
func jsonFieldName(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the mapped status and safe message for err and logs
// the redacted error. defaultMsg replaces the generic message of 5xx
// responses when set.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status >= http.StatusInternalServerError && defaultMsg != "" {
		message = defaultMsg
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
