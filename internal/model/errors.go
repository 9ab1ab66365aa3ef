package model

import "errors"

// Sentinel errors shared by the store implementations and the service
// layer. Handlers map them onto HTTP status codes with errors.Is, so
// wrap them (fmt.Errorf("%w: ...")) rather than returning new values.
var (
	// ErrNotFound reports a session, owner, member, or stage report
	// that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation reports input the pipeline refuses to act on:
	// malformed payloads, illegal status transitions, or turns sent
	// to a session that can no longer accept them.
	ErrValidation = errors.New("validation error")

	// ErrConflict reports a uniqueness clash, such as registering a
	// username that is already taken.
	ErrConflict = errors.New("conflict")
)
