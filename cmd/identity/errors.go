package identity

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("user not found")
	ErrConflict     = errors.New("user already exists")
)

// Error is returned by every identity operation that fails for a reason the
// caller can act on. Detail names the offending field and never carries
// secrets or password material.
type Error struct {
	Op     string
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Op, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Kind }

func invalid(op, detail string) error {
	return &Error{Op: op, Kind: ErrInvalidInput, Detail: detail}
}

func notFound(op string) error {
	return &Error{Op: op, Kind: ErrNotFound}
}

func conflict(op, field string) error {
	return &Error{Op: op, Kind: ErrConflict, Detail: field}
}

func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }
func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
