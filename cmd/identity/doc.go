// Package identity owns the users that sessions are issued to: their
// credentials, their role, and how they are stored.
package identity
