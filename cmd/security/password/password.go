package password

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Hash validates password against the policy and returns a bcrypt hash.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}

	cfg := c.normalized()
	b, err := bcrypt.GenerateFromPassword([]byte(password), cfg.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

// Verify checks whether password matches the encoded hash.
// Returns (true, nil) for a match, (false, nil) for mismatch,
// and (false, ErrInvalidHash) for malformed hashes.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// DummyVerify burns roughly the same time as a real Verify. Callers use it
// when the account does not exist so response timing does not reveal that.
func (c Config) DummyVerify(password string) {
	cfg := c.normalized()
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("passage-dummy-password"), cfg.Cost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
