// Package validate holds the request field rules shared by the HTTP
// handlers. Rules are deliberately narrow: identifiers that end up in file
// paths or SQL stay short and character-restricted.
package validate

import (
	"fmt"
	"regexp"
)

// Identifiers for sessions and devices: the characters that survive the
// data-dir path cleaning, capped well under filesystem limits.
var idRx = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Usernames are lowercase handle-style, 3-32 chars.
var usernameRx = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

// SessionID validates a caller-supplied session identifier.
func SessionID(v string) error {
	if v == "" {
		return fmt.Errorf("session id is required")
	}
	if !idRx.MatchString(v) {
		return fmt.Errorf("session id must match %s", idRx.String())
	}
	return nil
}

// DeviceID validates the ring's device identifier.
func DeviceID(v string) error {
	if v == "" {
		return fmt.Errorf("device id is required")
	}
	if !idRx.MatchString(v) {
		return fmt.Errorf("device id must match %s", idRx.String())
	}
	return nil
}

// Username validates an account handle.
func Username(v string) error {
	if v == "" {
		return fmt.Errorf("username is required")
	}
	if !usernameRx.MatchString(v) {
		return fmt.Errorf("username must match %s", usernameRx.String())
	}
	return nil
}

// NonEmpty requires the field to carry a value.
func NonEmpty(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// MaxLen bounds a field's byte length.
func MaxLen(field, v string, limit int) error {
	if len(v) > limit {
		return fmt.Errorf("%s exceeds %d characters", field, limit)
	}
	return nil
}

// Message validates a conversation message: required, bounded.
func Message(v string) error {
	if err := NonEmpty("message", v); err != nil {
		return err
	}
	return MaxLen("message", v, 2000)
}
