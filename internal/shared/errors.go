package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates a referenced resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates a missing, expired or invalid token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden covers both role and site isolation failures; the two are
	// indistinguishable on the wire so callers cannot probe other sites' data.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrStateConflict indicates a request that is well formed but illegal
	// given the entity's current status.
	ErrStateConflict = errors.New("invalid state")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError carries itemized field-level messages for a 400 response.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Details, "; ")
}

// NewValidationError builds a ValidationError from field messages.
func NewValidationError(details ...string) *ValidationError {
	return &ValidationError{Details: details}
}

// Addf appends a formatted field message.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Details = append(e.Details, fmt.Sprintf(format, args...))
}

// Empty reports whether no detail has been recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Details) == 0
}
