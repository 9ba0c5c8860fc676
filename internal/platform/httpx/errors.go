package httpx

import (
	"errors"
	"net/http"

	"github.com/kassa-fin/kassa/internal/shared"
)

// RespondError maps the core error taxonomy to HTTP responses using RFC7807.
// Validation failures are caller-correctable (400), conflicts surface the
// current state (409), and anything unclassified is an infrastructure error.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
