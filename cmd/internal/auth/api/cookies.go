package authapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
)

// Cookie names are part of the client contract.
const (
	CookieAccessFingerprint  = "accessTokenFingerprint"
	CookieRefreshToken       = "refreshToken"
	CookieRefreshFingerprint = "refreshTokenFingerprint"

	// cookieLegacyCSRF is only ever cleared.
	cookieLegacyCSRF = "_csrf"
)

var errCookieMissing = errors.New("cookie missing")

// cookieJar writes and reads HMAC-signed auth cookies. Values are not
// encrypted: the refresh token is already an envelope and fingerprints are
// random.
type cookieJar struct {
	codec    *securecookie.SecureCookie
	domain   string
	path     string
	secure   bool
	sameSite http.SameSite
}

func newCookieJar(cfg Config, maxAge time.Duration) *cookieJar {
	codec := securecookie.New([]byte(cfg.CookieSecret), nil)
	codec.MaxAge(int(maxAge / time.Second))
	codec.MaxLength(8192)

	path := cfg.CookiePath
	if path == "" {
		path = "/"
	}
	return &cookieJar{
		codec:    codec,
		domain:   cfg.CookieDomain,
		path:     path,
		secure:   cfg.CookieSecure,
		sameSite: http.SameSiteStrictMode,
	}
}

func (j *cookieJar) set(w http.ResponseWriter, name, value string, exp time.Time) error {
	encoded, err := j.codec.Encode(name, value)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    encoded,
		Path:     j.path,
		Domain:   j.domain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: j.sameSite,
	})
	return nil
}

// get returns the verified value of name. A missing, tampered, or stale
// cookie is reported as an error.
func (j *cookieJar) get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil || strings.TrimSpace(c.Value) == "" {
		return "", errCookieMissing
	}
	var v string
	if err := j.codec.Decode(name, c.Value, &v); err != nil {
		return "", err
	}
	return v, nil
}

// value is get with failures collapsed to "".
func (j *cookieJar) value(r *http.Request, name string) string {
	v, _ := j.get(r, name)
	return v
}

func (j *cookieJar) expire(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     j.path,
		Domain:   j.domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: j.sameSite,
	})
}

func (j *cookieJar) clearAuth(w http.ResponseWriter) {
	j.expire(w, CookieAccessFingerprint)
	j.expire(w, CookieRefreshToken)
	j.expire(w, CookieRefreshFingerprint)
}
