package api

import (
	"errors"
	"net/http"

	"github.com/cychipo/examio-be-sub001/internal/domain"
	"github.com/cychipo/examio-be-sub001/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes based on
// the error type, so handlers never leak internal error structure to
// clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidFormat):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrInsufficientCredit):
		return http.StatusPaymentRequired

	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for the
// error, hiding internal details behind generic wording.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidFormat):
		return err.Error()

	case errors.Is(err, store.ErrInsufficientCredit):
		return "Insufficient credit"

	case errors.Is(err, domain.ErrUnauthorized):
		return "Missing or malformed caller identity"

	case errors.Is(err, store.ErrForbidden):
		return "You do not have access to this resource"

	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, store.ErrDocumentNotFound):
		return "Document not found"

	case errors.Is(err, store.ErrNotFound):
		return "Not found"

	case errors.Is(err, store.ErrInvalidState):
		return "The job has already finished"

	default:
		return "An unexpected error occurred"
	}
}
