package shared

import (
	"errors"
	"fmt"
)

// Core error taxonomy. Every domain error wraps one of these sentinels so
// callers and the HTTP layer can classify failures with errors.Is.
var (
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a state violation, e.g. a closed period.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates a missing entity.
	ErrNotFound = errors.New("not found")
)

// Validationf wraps ErrValidation with formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf wraps ErrConflict with formatted detail.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with formatted detail.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
