package token

import "errors"

// Public, stable errors for callers. Verify returns exactly one of these on
// failure; the underlying library error is not exposed.
var (
	ErrExpired             = errors.New("token expired")
	ErrMalformed           = errors.New("token malformed")
	ErrFingerprintMismatch = errors.New("token fingerprint mismatch")
	ErrSecretMissing       = errors.New("token secret missing")
)
