package session

import (
	"errors"
	"fmt"
	"net/http"
)

// Store-level sentinels.
var (
	// ErrRecordNotFound is returned when no refresh-token record matches.
	ErrRecordNotFound = errors.New("refresh token record not found")

	// ErrDeviceNotFound is returned by FindDevice when no device matches.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrConflict is returned on a uniqueness violation (user or token).
	ErrConflict = errors.New("refresh token record conflict")

	// ErrEmptyFilter guards bulk deletes against an unconstrained filter.
	ErrEmptyFilter = errors.New("empty record filter")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// Service-level causes, reachable with errors.Is through *Error.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrMissingToken        = errors.New("token missing")
	ErrTokenRevoked        = errors.New("token not in whitelist")
	ErrDeviceNotRegistered = errors.New("device not registered")
)

// Kind is the closed set of failures surfaced to callers.
type Kind uint8

const (
	KindAuthentication Kind = iota + 1
	KindTokenExpired
	KindJSONWebToken
	KindNotFound
	KindConflict
	KindValidation
	KindForbidden
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "AuthenticationError"
	case KindTokenExpired:
		return "TokenExpiredError"
	case KindJSONWebToken:
		return "JsonWebTokenError"
	case KindNotFound:
		return "NotFoundError"
	case KindConflict:
		return "ConflictError"
	case KindValidation:
		return "ValidationError"
	case KindForbidden:
		return "ForbiddenError"
	case KindServer:
		return "ServerError"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Status is the HTTP status for k.
func (k Kind) Status() int {
	switch k {
	case KindAuthentication, KindTokenExpired, KindJSONWebToken:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// TokenType says which credential an error is about.
type TokenType uint8

const (
	TokenTypeGeneric TokenType = iota
	TokenTypeAccess
	TokenTypeRefresh
)

// Error is the typed failure returned by Service operations.
//
// Msg is safe to show to clients. Err is the internal cause and may carry
// detail that must not leave the process.
type Error struct {
	Kind      Kind
	TokenType TokenType
	Msg       string
	Err       error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Status is the HTTP status for e.
func (e *Error) Status() int { return e.Kind.Status() }

// ClearsCookies reports whether the client should drop every auth cookie.
// Refresh-token failures end the session; access-token failures only call
// for a refresh.
func (e *Error) ClearsCookies() bool { return e.TokenType == TokenTypeRefresh }

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func newError(kind Kind, tt TokenType, msg string, cause error) *Error {
	return &Error{Kind: kind, TokenType: tt, Msg: msg, Err: cause}
}

func serverError(cause error) *Error {
	return newError(KindServer, TokenTypeGeneric, "internal error", cause)
}
