package envelope

import "errors"

var (
	// ErrDecrypt is returned for every open failure: malformed envelope,
	// bad key size, or authentication failure.
	ErrDecrypt = errors.New("envelope: decryption failed")

	// ErrKeySize is returned when constructing a Codec with a key that is not 32 bytes.
	ErrKeySize = errors.New("envelope: key must be 32 bytes")
)
