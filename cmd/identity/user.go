package identity

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"passage/cmd/identity/ids"
	"passage/cmd/security/password"
)

// User is the security principal sessions are issued to.
type User struct {
	ID           string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Store is the persistence surface for users.
type Store interface {
	// GetByUsername looks up by normalized username.
	GetByUsername(ctx context.Context, username string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	// Create inserts u as-is; ID and PasswordHash must already be set.
	Create(ctx context.Context, u User) (User, error)
}

// CreateUserInput describes a user registration request.
type CreateUserInput struct {
	Username  string
	FirstName string
	LastName  string
	Password  string
	Role      Role
	Now       time.Time
}

// Register validates in, hashes the password, and stores the user.
func Register(ctx context.Context, st Store, pw password.Config, in CreateUserInput) (User, error) {
	const op = "identity.Register"

	username := NormalizeUsername(in.Username)
	if username == "" {
		return User{}, invalid(op, "username is required")
	}
	role := in.Role
	if role == 0 {
		role = RoleStudent
	}
	if !role.Valid() {
		return User{}, invalid(op, "invalid role")
	}

	hash, err := pw.Hash(in.Password)
	if err != nil {
		return User{}, invalid(op, err.Error())
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	return st.Create(ctx, User{
		ID:           id,
		Username:     username,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
	})
}

// NormalizeUsername canonicalizes a username for storage and lookup:
// surrounding space is trimmed, compatibility forms are composed (NFKC),
// and case is folded so "Alice" and "ＡＬＩＣＥ" name the same account.
func NormalizeUsername(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}
