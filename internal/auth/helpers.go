package auth

import (
	"net/http"
	"strings"
)

// ExtractBearer pulls the token out of the Authorization header. Returns
// ErrMissingAuthHeader unless the header is exactly "Bearer <token>".
func ExtractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", ErrMissingAuthHeader
	}
	return strings.TrimSpace(parts[1]), nil
}
