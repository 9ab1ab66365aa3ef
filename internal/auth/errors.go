package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when the username is unknown or the
	// password does not match.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidToken is returned when a bearer token resolves to no owner.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrMissingAuthHeader is returned when the Authorization header is
	// absent or not in "Bearer <token>" form.
	ErrMissingAuthHeader = errors.New("missing or invalid Authorization header")
)
