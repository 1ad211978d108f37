package httpx

import (
	"errors"
	"net/http"

	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// RespondError maps domain errors to HTTP responses. Validation and state
// errors surface their messages; authorization failures stay generic and
// identical whether the resource exists or not; anything unexpected becomes
// an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	var vErr *shared.ValidationError
	switch {
	case errors.As(err, &vErr):
		Error(w, http.StatusBadRequest, "validation failed", vErr.Details...)
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shared.ErrStateConflict):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Error(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, shared.ErrUnauthorized):
		Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, "invalid credentials")
	default:
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}
