package api

import (
	"errors"
	"net/http"

	"github.com/dwarpal-ai/dwarpal/internal/api/respond"
	"github.com/dwarpal-ai/dwarpal/internal/auth"
	"github.com/dwarpal-ai/dwarpal/internal/fault"
	"github.com/dwarpal-ai/dwarpal/internal/model"
)

// writeDomainError maps service and pipeline errors onto the HTTP status
// contract: 400 validation, 401 auth, 404 missing, 409 conflict, 429
// back-pressure, 503 shutdown, 500 otherwise.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		respond.WriteBadRequest(w, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingAuthHeader):
		respond.WriteUnauthorized(w, err.Error())
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrConflict), fault.IsTransitionError(err):
		respond.WriteConflict(w, err.Error())
	case fault.IsBackPressureError(err):
		respond.WriteTooManyRequests(w, err.Error())
	case fault.IsCancellation(err):
		respond.WriteServiceUnavailable(w, "service is shutting down")
	default:
		respond.WriteInternalError(w, err.Error())
	}
}
