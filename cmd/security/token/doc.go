// Package token signs and verifies the fingerprinted JWTs used for access and
// refresh credentials.
//
// The signing algorithm is pinned to HS256. Verification rejects any other
// declared algorithm, including "none", so a token cannot pick its own
// verification scheme.
//
// Every token embeds a random fingerprint. The same fingerprint is delivered
// to the client in a separate signed cookie, and Verify requires the caller to
// present it.
package token
