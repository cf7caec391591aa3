package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"passage/cmd/identity"
	"passage/cmd/security/password"
)

func TestBootstrapAdmin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := zaptest.NewLogger(t)
	users := identity.NewMemoryStore()
	pw := password.DefaultConfig()
	pw.Cost = bcrypt.MinCost

	cfg := Config{BootstrapAdminUsername: "  Root ", BootstrapAdminPassword: "correct horse battery"}
	require.NoError(t, bootstrapAdmin(ctx, cfg, users, pw, log))

	u, err := users.GetByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAdmin, u.Role)

	// Second start with a different password leaves the account untouched.
	cfg.BootstrapAdminPassword = "another long password"
	require.NoError(t, bootstrapAdmin(ctx, cfg, users, pw, log))

	again, err := users.GetByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, u.PasswordHash, again.PasswordHash)
}

func TestBootstrapAdmin_DisabledWithoutUsername(t *testing.T) {
	t.Parallel()

	users := identity.NewMemoryStore()
	require.NoError(t, bootstrapAdmin(context.Background(), Config{}, users, password.DefaultConfig(), zaptest.NewLogger(t)))

	_, err := users.GetByUsername(context.Background(), "root")
	assert.True(t, identity.IsNotFound(err))
}
