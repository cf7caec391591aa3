package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	KeySize   = 32
	NonceSize = 12
	TagSize   = 16

	sep = ":"
)

// Codec encrypts and decrypts envelopes under one process-wide key.
// It is safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a Codec from a raw 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// NewCodecFromHex builds a Codec from a 64-char hex key.
func NewCodecFromHex(hexKey string) (*Codec, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("envelope: key is not hex: %w", err)
	}
	return NewCodec(key)
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	return seal(c.aead, plaintext)
}

// EncryptString is Encrypt for string payloads such as signed JWTs.
func (c *Codec) EncryptString(plaintext string) (string, error) {
	return c.Encrypt([]byte(plaintext))
}

// Decrypt opens an envelope produced by Encrypt.
func (c *Codec) Decrypt(env string) ([]byte, error) {
	return open(c.aead, env)
}

// DecryptString is Decrypt for string payloads.
func (c *Codec) DecryptString(env string) (string, error) {
	b, err := c.Decrypt(env)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrKeySize
	}
	return cipher.NewGCMWithNonceSize(block, NonceSize)
}

func seal(aead cipher.AEAD, plaintext []byte) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("envelope: nonce: %w", err)
	}

	// GCM appends the tag to the ciphertext.
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	return hex.EncodeToString(nonce) + sep + hex.EncodeToString(ct) + sep + hex.EncodeToString(tag), nil
}

func open(aead cipher.AEAD, env string) ([]byte, error) {
	parts := strings.Split(env, sep)
	if len(parts) != 3 {
		return nil, ErrDecrypt
	}

	nonce, ok := decodeLowerHex(parts[0])
	if !ok || len(nonce) != NonceSize {
		return nil, ErrDecrypt
	}
	ct, ok := decodeLowerHex(parts[1])
	if !ok {
		return nil, ErrDecrypt
	}
	tag, ok := decodeLowerHex(parts[2])
	if !ok || len(tag) != TagSize {
		return nil, ErrDecrypt
	}

	plaintext, err := aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// decodeLowerHex rejects upper-case digits so that every envelope has exactly
// one textual form.
func decodeLowerHex(s string) ([]byte, bool) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return nil, false
		}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}
