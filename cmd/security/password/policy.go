package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")
	ErrInvalidHash      = errors.New("invalid password hash")
)

// commonPasswords are rejected outright when RejectVeryWeak is set.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {},
	"12345678": {}, "123456789": {}, "1234567890": {}, "11111111": {},
	"qwerty123": {}, "qwertyuiop": {}, "letmein1": {}, "iloveyou": {},
	"admin123": {}, "welcome1": {},
}

// Validate checks p against the policy without modifying it. Lengths are in
// bytes since bcrypt ignores everything past 72.
func (c Config) Validate(p string) error {
	switch n := len(p); {
	case n < c.Policy.MinLength:
		return fmt.Errorf("%w: need at least %d bytes", ErrPasswordTooShort, c.Policy.MinLength)
	case n > c.Policy.MaxLength:
		return fmt.Errorf("%w: at most %d bytes", ErrPasswordTooLong, c.Policy.MaxLength)
	}
	if c.Policy.RejectVeryWeak {
		if reason := weakness(p); reason != "" {
			return fmt.Errorf("%w: %s", ErrWeakPassword, reason)
		}
	}
	return nil
}

// weakness names the first trivially guessable property of p, or "".
func weakness(p string) string {
	s := strings.TrimSpace(p)
	if s == "" {
		return "blank"
	}
	if _, ok := commonPasswords[strings.ToLower(s)]; ok {
		return "commonly used"
	}
	first, _ := utf8.DecodeRuneInString(s)
	if strings.Trim(s, string(first)) == "" {
		return "single repeated character"
	}
	if len(s) < 12 && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return "short and numeric only"
	}
	return ""
}
