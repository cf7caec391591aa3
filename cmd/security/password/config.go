package password

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"golang.org/x/crypto/bcrypt"
)

// maxBcryptInput is the number of bytes bcrypt actually reads.
const maxBcryptInput = 72

// Policy controls password validation.
type Policy struct {
	MinLength      int  `env:"PASSAGE_PASSWORD_MIN_LEN" envDefault:"8"`
	MaxLength      int  `env:"PASSAGE_PASSWORD_MAX_LEN" envDefault:"72"`
	RejectVeryWeak bool `env:"PASSAGE_PASSWORD_REJECT_VERY_WEAK" envDefault:"false"`
}

// Config is the single configuration surface for this package.
type Config struct {
	Cost   int `env:"PASSAGE_BCRYPT_COST" envDefault:"12"`
	Policy Policy
}

// DefaultConfig matches the cost the user records were originally hashed with.
func DefaultConfig() Config {
	return Config{
		Cost: 12,
		Policy: Policy{
			MinLength: 8,
			MaxLength: maxBcryptInput,
		},
	}
}

// FromEnv loads config from environment variables and clamps it to what
// bcrypt accepts.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("password config: %w", err)
	}
	return cfg.normalized(), nil
}

func (c Config) normalized() Config {
	if c.Cost < bcrypt.MinCost || c.Cost > bcrypt.MaxCost {
		c.Cost = bcrypt.DefaultCost
	}
	if c.Policy.MinLength <= 0 {
		c.Policy.MinLength = 8
	}
	if c.Policy.MaxLength <= 0 || c.Policy.MaxLength > maxBcryptInput {
		c.Policy.MaxLength = maxBcryptInput
	}
	if c.Policy.MinLength > c.Policy.MaxLength {
		c.Policy.MinLength = c.Policy.MaxLength
	}
	return c
}
