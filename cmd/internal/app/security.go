package app

import (
	"errors"

	authapi "passage/cmd/internal/auth/api"
	"passage/cmd/internal/auth/session"
)

// ValidateSecurityConfig enforces secret separation at startup. Each
// package validates its own lengths; this checks the secrets are distinct
// across packages.
func ValidateSecurityConfig(sess session.Config, api authapi.Config) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if len(api.CookieSecret) < 32 {
		return errors.New("security policy: PASSAGE_COOKIE_SECRET must be at least 32 bytes")
	}
	if sess.AccessSecret == sess.RefreshSecret {
		return errors.New("security policy: access and refresh JWT secrets must differ")
	}
	if api.CookieSecret == sess.AccessSecret || api.CookieSecret == sess.RefreshSecret {
		return errors.New("security policy: PASSAGE_COOKIE_SECRET must differ from the JWT secrets")
	}
	if sess.CipherKeyHex == api.CookieSecret {
		return errors.New("security policy: PASSAGE_CIPHER_KEY must not double as a signing secret")
	}
	return nil
}
