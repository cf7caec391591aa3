package session

import (
	"fmt"
	"time"

	"passage/cmd/internal/envconf"
)

// Config defines the runtime configuration of the session subsystem.
type Config struct {
	AccessSecret string        `env:"PASSAGE_JWT_ACCESS_SECRET" validate:"required,min=32"`
	AccessTTL    time.Duration `env:"PASSAGE_JWT_ACCESS_TTL" envDefault:"15m" validate:"duration_gt0"`

	RefreshSecret string        `env:"PASSAGE_JWT_REFRESH_SECRET" validate:"required,min=32,nefield=AccessSecret"`
	RefreshTTL    time.Duration `env:"PASSAGE_JWT_REFRESH_TTL" envDefault:"168h" validate:"duration_gt0,gtfield=AccessTTL"`

	Issuer string `env:"PASSAGE_JWT_ISSUER" envDefault:"passage" validate:"required"`

	// CipherKeyHex is the AES-256 key for token envelopes, 64 hex chars.
	CipherKeyHex string `env:"PASSAGE_CIPHER_KEY" validate:"required,hexadecimal,len=64"`

	SweepInterval time.Duration `env:"PASSAGE_SWEEP_INTERVAL" envDefault:"1h" validate:"duration_gt0"`
	SweepTimeout  time.Duration `env:"PASSAGE_SWEEP_TIMEOUT" envDefault:"30s" validate:"duration_gt0"`
}

// DefaultConfig returns the non-secret defaults. Secrets and the cipher key
// have no default.
func DefaultConfig() Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "passage",
		SweepInterval: time.Hour,
		SweepTimeout:  30 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - PASSAGE_JWT_ACCESS_SECRET
//   - PASSAGE_JWT_REFRESH_SECRET
//   - PASSAGE_CIPHER_KEY
//
// Returns an error wrapping ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconf.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return cfg, nil
}

// Validate checks cfg the same way LoadConfigFromEnv does.
func (c Config) Validate() error {
	if err := envconf.Validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}
