package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"passage/cmd/identity"
	"passage/cmd/security/password"
)

// bootstrapAdmin creates the configured admin account once. An existing
// account with the same username is left untouched.
func bootstrapAdmin(ctx context.Context, cfg Config, users identity.Store, pw password.Config, log *zap.Logger) error {
	if cfg.BootstrapAdminUsername == "" {
		return nil
	}

	u, err := identity.Register(ctx, users, pw, identity.CreateUserInput{
		Username: cfg.BootstrapAdminUsername,
		Password: cfg.BootstrapAdminPassword,
		Role:     identity.RoleAdmin,
		Now:      time.Now().UTC(),
	})
	switch {
	case err == nil:
		log.Info("bootstrap.admin.created", zap.String("user_id", u.ID), zap.String("username", u.Username))
		return nil
	case identity.IsConflict(err):
		log.Info("bootstrap.admin.exists", zap.String("username", identity.NormalizeUsername(cfg.BootstrapAdminUsername)))
		return nil
	default:
		return err
	}
}
