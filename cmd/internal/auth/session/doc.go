// Package session implements the token lifecycle and device-bound session
// management engine.
//
// Each user owns at most one refresh-token record. The record carries the
// encrypted refresh token, the list of devices signed in under it, and an
// append-only login history. Access tokens are short-lived and never stored;
// both kinds are HS256 JWTs sealed in an AES-GCM envelope and bound to a
// fingerprint the client holds in a separate signed cookie.
//
// Refresh tokens are deliberately not rotated on use, so one device
// refreshing never invalidates its siblings. Revocation happens by removing
// the record: logout of the last device, logout-all, the expiry sweep, or an
// administrative revoke-before.
package session
