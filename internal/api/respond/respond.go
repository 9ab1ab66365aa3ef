// Package respond centralizes JSON response writing so every handler
// produces the same error body shape.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes data as a JSON body with the given status code. An
// encode failure can only be logged; the status line is already on the
// wire by then.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Int("status", statusCode).Msg("Failed to encode JSON response")
	}
}

// WriteError writes the standard error body for statusCode.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    statusCode,
		Message: message,
	})
}

// Status shorthands used by the handlers. WriteTooManyRequests covers
// back-pressure rejections and WriteServiceUnavailable covers shutdown
// draining.

func WriteBadRequest(w http.ResponseWriter, message string)   { WriteError(w, http.StatusBadRequest, message) }
func WriteUnauthorized(w http.ResponseWriter, message string) { WriteError(w, http.StatusUnauthorized, message) }
func WriteNotFound(w http.ResponseWriter, message string)     { WriteError(w, http.StatusNotFound, message) }
func WriteConflict(w http.ResponseWriter, message string)     { WriteError(w, http.StatusConflict, message) }

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message)
}

func WriteServiceUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}
