// Package fault defines the typed errors shared across pipeline stages.
// The orchestrator keys its retry, back-pressure, and failure behavior off
// these types via errors.As / errors.Is.
package fault

import (
	"context"
	"errors"
	"fmt"
)

// TransientProviderError represents a retryable failure from an external
// provider (timeout, 5xx, connection reset).
type TransientProviderError struct {
	Provider string
	Err      error
}

func (e TransientProviderError) Error() string {
	return fmt.Sprintf("transient %s provider failure: %v", e.Provider, e.Err)
}

func (e TransientProviderError) Unwrap() error { return e.Err }

// NewTransientProviderError wraps a provider failure.
func NewTransientProviderError(provider string, err error) TransientProviderError {
	return TransientProviderError{Provider: provider, Err: err}
}

// IsTransientProviderError checks if an error is transient (including wrapped errors).
func IsTransientProviderError(err error) bool {
	var te TransientProviderError
	return errors.As(err, &te)
}

// ContractViolation represents reply-provider output that failed the safety
// scan. The first occurrence in a session degrades to the canned reply; the
// second fails the session.
type ContractViolation struct {
	Rule    string
	Message string
}

func (e ContractViolation) Error() string {
	return fmt.Sprintf("reply contract violation (%s): %s", e.Rule, e.Message)
}

// NewContractViolation constructs a ContractViolation.
func NewContractViolation(rule, message string) ContractViolation {
	return ContractViolation{Rule: rule, Message: message}
}

// IsContractViolation checks if error is a ContractViolation.
func IsContractViolation(err error) bool {
	var cv ContractViolation
	return errors.As(err, &cv)
}

// StoreError wraps a persistence failure. Stage writes are retried once on
// this type before the session fails.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps a DB failure with the operation name.
func NewStoreError(op string, err error) StoreError {
	return StoreError{Op: op, Err: err}
}

// IsStoreError checks if error is a StoreError.
func IsStoreError(err error) bool {
	var se StoreError
	return errors.As(err, &se)
}

// BackPressureError is returned when a session queue is full. It maps to
// HTTP 429 and never mutates session state.
type BackPressureError struct {
	SessionID string
	Length    int
	Capacity  int
}

func (e BackPressureError) Error() string {
	return fmt.Sprintf("session %s queue full: %d/%d jobs", e.SessionID, e.Length, e.Capacity)
}

// NewBackPressureError constructs a BackPressureError.
func NewBackPressureError(sessionID string, length, capacity int) BackPressureError {
	return BackPressureError{SessionID: sessionID, Length: length, Capacity: capacity}
}

// IsBackPressureError checks if error is a BackPressureError.
func IsBackPressureError(err error) bool {
	var be BackPressureError
	return errors.As(err, &be)
}

// TransitionError represents a rejected session status change.
type TransitionError struct {
	SessionID string
	From      string
	To        string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("session %s: illegal status transition %s -> %s", e.SessionID, e.From, e.To)
}

// NewTransitionError constructs a TransitionError.
func NewTransitionError(sessionID, from, to string) TransitionError {
	return TransitionError{SessionID: sessionID, From: from, To: to}
}

// IsTransitionError checks if error is a TransitionError.
func IsTransitionError(err error) bool {
	var te TransitionError
	return errors.As(err, &te)
}

// ErrCancelled marks work abandoned because the service is shutting down.
var ErrCancelled = errors.New("pipeline cancelled")

// IsCancellation reports whether err stems from shutdown or context
// cancellation rather than a real failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
