package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FingerprintBytes is the entropy of a fingerprint before hex encoding.
const FingerprintBytes = 16

var pinnedMethod = jwt.SigningMethodHS256

// NewFingerprint returns a fresh random hex fingerprint.
func NewFingerprint() (string, error) {
	b := make([]byte, FingerprintBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Sign issues an HS256 token for sub that expires at now+ttl.
func Sign(sub Subject, fingerprint string, secret []byte, ttl time.Duration, issuer string, now time.Time) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, ErrSecretMissing
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("token ttl must be positive")
	}

	// JWT NumericDate has second precision; truncate so exp round-trips exactly.
	iat := now.UTC().Truncate(time.Second)
	exp := iat.Add(ttl)

	claims := Claims{
		SubjectID:   sub.ID,
		Role:        sub.Role,
		Fingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(pinnedMethod, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm, issuer, and expiry at now, then requires
// the embedded fingerprint to equal expectedFingerprint.
func Verify(signed, expectedFingerprint string, secret []byte, ttl time.Duration, issuer string, now time.Time) (Claims, error) {
	claims, err := Inspect(signed, secret, ttl, issuer, now)
	if err != nil {
		return Claims{}, err
	}
	if subtle.ConstantTimeCompare([]byte(claims.Fingerprint), []byte(expectedFingerprint)) != 1 {
		return Claims{}, ErrFingerprintMismatch
	}
	return claims, nil
}

// Inspect is Verify without the fingerprint check. It is for tokens the
// server itself stored, where there is no cookie to compare against.
//
// A token whose lifetime (exp - iat) exceeds ttl is treated as malformed: it was
// not issued under the current configuration.
func Inspect(signed string, secret []byte, ttl time.Duration, issuer string, now time.Time) (Claims, error) {
	if len(secret) == 0 {
		return Claims{}, ErrSecretMissing
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{pinnedMethod.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(signed, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrMalformed
	}

	if ttl > 0 && claims.IssuedAt != nil && claims.ExpiresAt.Sub(claims.IssuedAt.Time) > ttl {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}

// Signer binds the per-kind parameters of Sign and Verify.
type Signer struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// Sign issues a token for sub with a new fingerprint.
func (s Signer) Sign(sub Subject, now time.Time) (signed, fingerprint string, expiresAt time.Time, err error) {
	fingerprint, err = NewFingerprint()
	if err != nil {
		return "", "", time.Time{}, err
	}
	signed, expiresAt, err = Sign(sub, fingerprint, s.Secret, s.TTL, s.Issuer, now)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, fingerprint, expiresAt, nil
}

// Inspect is Inspect with s's parameters.
func (s Signer) Inspect(signed string, now time.Time) (Claims, error) {
	return Inspect(signed, s.Secret, s.TTL, s.Issuer, now)
}

// Verify is Verify with s's parameters.
func (s Signer) Verify(signed, fingerprint string, now time.Time) (Claims, error) {
	return Verify(signed, fingerprint, s.Secret, s.TTL, s.Issuer, now)
}
