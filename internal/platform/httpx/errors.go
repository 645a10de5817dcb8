// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/usergate/usergate/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Unauthenticated and forbidden produce byte-identical responses.
func RespondError(w http.ResponseWriter, err error) {
	msg := shared.UserSafeMessage(err)
	switch {
	case errors.Is(err, shared.ErrRateLimited):
		Problem(w, http.StatusTooManyRequests, "Too Many Requests", msg)
	case errors.Is(err, shared.ErrUnauthenticated),
		errors.Is(err, shared.ErrForbidden),
		errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", msg)
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", msg)
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", msg)
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", msg)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
