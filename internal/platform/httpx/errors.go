// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/fabline/fabline/internal/shared"
)

var exposeInternal atomic.Bool

// ExposeInternalErrors controls whether 500 responses carry the error
// message in detail. It is off unless enabled.
func ExposeInternalErrors(enabled bool) {
	exposeInternal.Store(enabled)
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConcurrencyConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusBadRequest, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrAmountMismatch):
		Problem(w, http.StatusBadRequest, "Amount Mismatch", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrDependency):
		Problem(w, http.StatusBadGateway, "Upstream Failure", "")
	default:
		detail := ""
		if exposeInternal.Load() {
			detail = err.Error()
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", detail)
	}
}

// StatusFor reports the status code RespondError would use for err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInvalidTransition), errors.Is(err, shared.ErrAmountMismatch):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrDependency):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
