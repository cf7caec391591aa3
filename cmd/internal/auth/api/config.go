package authapi

import (
	"fmt"
	"time"

	"passage/cmd/internal/envconf"
)

// Config controls the HTTP auth boundary.
type Config struct {
	// CookieSecret signs the auth cookies. It must not be reused as a JWT secret.
	CookieSecret string `env:"PASSAGE_COOKIE_SECRET" validate:"required,min=32"`
	CookieDomain string `env:"PASSAGE_COOKIE_DOMAIN"`
	CookiePath   string `env:"PASSAGE_COOKIE_PATH" envDefault:"/"`
	CookieSecure bool   `env:"PASSAGE_COOKIE_SECURE" envDefault:"true"`

	TrustProxy   bool  `env:"PASSAGE_TRUST_PROXY" envDefault:"false"`
	MaxBodyBytes int64 `env:"PASSAGE_MAX_BODY_BYTES" envDefault:"1048576" validate:"gt=0"`

	// LoginMaxAttempts caps failed logins for one username from one client IP.
	// LoginIPMaxAttempts caps failed logins from one client IP across usernames.
	// Successful logins are never counted.
	LoginMaxAttempts   int           `env:"PASSAGE_LOGIN_MAX_ATTEMPTS" envDefault:"10" validate:"gt=0"`
	LoginIPMaxAttempts int           `env:"PASSAGE_LOGIN_IP_MAX_ATTEMPTS" envDefault:"50" validate:"gtefield=LoginMaxAttempts"`
	LoginWindow        time.Duration `env:"PASSAGE_LOGIN_WINDOW" envDefault:"15m" validate:"duration_gt0"`
}

// DefaultConfig returns the defaults without a cookie secret.
func DefaultConfig() Config {
	return Config{
		CookiePath:         "/",
		CookieSecure:       true,
		MaxBodyBytes:       1 << 20,
		LoginMaxAttempts:   10,
		LoginIPMaxAttempts: 50,
		LoginWindow:        15 * time.Minute,
	}
}

// LoadConfigFromEnv loads auth API config from environment variables.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconf.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("authapi config: %w", err)
	}
	return cfg, nil
}
