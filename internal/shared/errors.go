package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks user-correctable input problems.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState occurs when an action violates a status workflow.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrConflict indicates the record changed underneath the caller; refresh and retry.
	ErrConflict = errors.New("record was modified concurrently")
)

// Validationf wraps ErrValidation with a human readable reason.
func Validationf(reason string) error {
	return &reasonError{kind: ErrValidation, reason: reason}
}

// InvalidStatef wraps ErrInvalidState with a human readable reason.
func InvalidStatef(reason string) error {
	return &reasonError{kind: ErrInvalidState, reason: reason}
}

// Conflictf wraps ErrConflict with a human readable reason.
func Conflictf(reason string) error {
	return &reasonError{kind: ErrConflict, reason: reason}
}

// WithPrefix prepends context to err. Reasoned errors keep their kind and
// carry the prefix into the user facing reason.
func WithPrefix(prefix string, err error) error {
	if err == nil {
		return nil
	}
	var re *reasonError
	if errors.As(err, &re) {
		return &reasonError{kind: re.kind, reason: prefix + ": " + re.reason}
	}
	return fmt.Errorf("%s: %w", prefix, err)
}

type reasonError struct {
	kind   error
	reason string
}

func (e *reasonError) Error() string {
	return e.reason
}

func (e *reasonError) Unwrap() error {
	return e.kind
}

// Reason returns the message suitable for end users. Errors outside the
// known taxonomy collapse to a generic message.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var re *reasonError
	if errors.As(err, &re) {
		return re.reason
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "record not found"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidState), errors.Is(err, ErrConflict):
		return strings.TrimSpace(err.Error())
	}
	return "unexpected error, please retry"
}
