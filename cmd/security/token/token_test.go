package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSecret = []byte("0123456789abcdef0123456789abcdef")
	testNow    = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	alice      = Subject{ID: "01J0ALICE", Role: "Student"}
)

func TestSignVerify_RoundTrip(t *testing.T) {
	fp, err := NewFingerprint()
	require.NoError(t, err)
	assert.Len(t, fp, FingerprintBytes*2)

	signed, exp, err := Sign(alice, fp, testSecret, 15*time.Minute, "passage", testNow)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(15*time.Minute), exp)

	claims, err := Verify(signed, fp, testSecret, 15*time.Minute, "passage", testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, alice, claims.Subject())
	assert.Equal(t, fp, claims.Fingerprint)
	assert.Equal(t, "passage", claims.Issuer)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())
}

func TestVerify_Expired(t *testing.T) {
	s := Signer{Secret: testSecret, TTL: time.Minute, Issuer: "passage"}
	signed, fp, _, err := s.Sign(alice, testNow)
	require.NoError(t, err)

	_, err = s.Verify(signed, fp, testNow.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_FingerprintMismatchIsNotExpiry(t *testing.T) {
	s := Signer{Secret: testSecret, TTL: time.Minute, Issuer: "passage"}
	signed, _, _, err := s.Sign(alice, testNow)
	require.NoError(t, err)

	other, err := NewFingerprint()
	require.NoError(t, err)

	_, err = s.Verify(signed, other, testNow)
	assert.ErrorIs(t, err, ErrFingerprintMismatch)
}

func TestVerify_WrongSecretOrIssuer(t *testing.T) {
	s := Signer{Secret: testSecret, TTL: time.Minute, Issuer: "passage"}
	signed, fp, _, err := s.Sign(alice, testNow)
	require.NoError(t, err)

	_, err = Verify(signed, fp, []byte("another-secret-another-secret-xx"), time.Minute, "passage", testNow)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Verify(signed, fp, testSecret, time.Minute, "someone-else", testNow)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_Tampered(t *testing.T) {
	s := Signer{Secret: testSecret, TTL: time.Minute, Issuer: "passage"}
	signed, fp, _, err := s.Sign(alice, testNow)
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)

	forged, _, err := Sign(Subject{ID: alice.ID, Role: "Admin"}, fp, []byte("attacker-secret-attacker-secret!"), time.Minute, "passage", testNow)
	require.NoError(t, err)
	forgedParts := strings.Split(forged, ".")

	// Admin payload under the original signature.
	_, err = s.Verify(parts[0]+"."+forgedParts[1]+"."+parts[2], fp, testNow)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = s.Verify("not-a-jwt", fp, testNow)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	fp, err := NewFingerprint()
	require.NoError(t, err)

	claims := Claims{
		SubjectID:   alice.ID,
		Role:        "Admin",
		Fingerprint: fp,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "passage",
			IssuedAt:  jwt.NewNumericDate(testNow),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Minute)),
		},
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = Verify(none, fp, testSecret, time.Minute, "passage", testNow)
	assert.ErrorIs(t, err, ErrMalformed)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	_, err = Verify(hs512, fp, testSecret, time.Minute, "passage", testNow)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_LifetimeLongerThanTTL(t *testing.T) {
	fp, err := NewFingerprint()
	require.NoError(t, err)

	signed, _, err := Sign(alice, fp, testSecret, 24*time.Hour, "passage", testNow)
	require.NoError(t, err)

	_, err = Verify(signed, fp, testSecret, time.Hour, "passage", testNow)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSign_RequiresSecretAndTTL(t *testing.T) {
	_, _, err := Sign(alice, "fp", nil, time.Minute, "passage", testNow)
	assert.ErrorIs(t, err, ErrSecretMissing)

	_, _, err = Sign(alice, "fp", testSecret, 0, "passage", testNow)
	assert.Error(t, err)
}

func TestInspect_SkipsFingerprint(t *testing.T) {
	s := Signer{Secret: testSecret, TTL: time.Hour, Issuer: "passage"}
	signed, fp, _, err := s.Sign(alice, testNow)
	require.NoError(t, err)

	claims, err := s.Inspect(signed, testNow)
	require.NoError(t, err)
	assert.Equal(t, fp, claims.Fingerprint)

	_, err = s.Inspect(signed, testNow.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrExpired)
}
