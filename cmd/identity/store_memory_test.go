package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"passage/cmd/security/password"
)

func testPasswordConfig() password.Config {
	cfg := password.DefaultConfig()
	cfg.Cost = bcrypt.MinCost
	return cfg
}

func TestRegister_MemoryStore(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	pw := testPasswordConfig()

	u, err := Register(ctx, st, pw, CreateUserInput{
		Username: "  Alice ",
		Password: "correct horse battery",
		Now:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, RoleStudent, u.Role)
	assert.Len(t, u.ID, 26)

	got, err := st.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	ok, err := pw.Verify(got.PasswordHash, "correct horse battery")
	require.NoError(t, err)
	assert.True(t, ok)

	byID, err := st.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Username, byID.Username)
}

func TestRegister_Conflict(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	pw := testPasswordConfig()

	_, err := Register(ctx, st, pw, CreateUserInput{Username: "bob", Password: "correct horse battery"})
	require.NoError(t, err)

	_, err = Register(ctx, st, pw, CreateUserInput{Username: "BOB", Password: "another password"})
	assert.True(t, IsConflict(err))
}

func TestRegister_InvalidInput(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	pw := testPasswordConfig()

	_, err := Register(ctx, st, pw, CreateUserInput{Username: " ", Password: "correct horse battery"})
	assert.True(t, IsInvalidInput(err))

	_, err = Register(ctx, st, pw, CreateUserInput{Username: "carol", Password: "short"})
	assert.True(t, IsInvalidInput(err))

	_, err = Register(ctx, st, pw, CreateUserInput{Username: "carol", Password: "correct horse battery", Role: Role(9)})
	assert.True(t, IsInvalidInput(err))
}

func TestMemoryStore_NotFound(t *testing.T) {
	st := NewMemoryStore()

	_, err := st.GetByUsername(context.Background(), "nobody")
	assert.True(t, IsNotFound(err))

	_, err = st.GetByID(context.Background(), "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	assert.True(t, IsNotFound(err))
}
