package authapi

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PASSAGE_COOKIE_SECRET", strings.Repeat("c", 32))
	t.Setenv("PASSAGE_LOGIN_WINDOW", "1m")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "/", cfg.CookiePath)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, 10, cfg.LoginMaxAttempts)
	assert.Equal(t, 50, cfg.LoginIPMaxAttempts)
	assert.Equal(t, time.Minute, cfg.LoginWindow)
}

func TestLoadConfigFromEnv_ShortCookieSecret(t *testing.T) {
	t.Setenv("PASSAGE_COOKIE_SECRET", "short")

	_, err := LoadConfigFromEnv()
	assert.Error(t, err)
}

func TestLoadConfigFromEnv_IPBudgetBelowUserBudget(t *testing.T) {
	t.Setenv("PASSAGE_COOKIE_SECRET", strings.Repeat("c", 32))
	t.Setenv("PASSAGE_LOGIN_MAX_ATTEMPTS", "10")
	t.Setenv("PASSAGE_LOGIN_IP_MAX_ATTEMPTS", "5")

	_, err := LoadConfigFromEnv()
	assert.Error(t, err)
}
