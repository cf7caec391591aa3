// Package password hashes and verifies user passwords with bcrypt.
//
// Hashes are stored in the standard modular crypt form ($2a$/$2b$). Verify
// treats the stored hash as untrusted input and reports malformed hashes as
// ErrInvalidHash rather than as a mismatch.
package password
