package app

import (
	"fmt"
	"time"

	"passage/cmd/internal/envconf"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string `env:"PASSAGE_HTTP_ADDR" envDefault:"0.0.0.0:8080" validate:"required,hostname_port"`
	LogLevel  string `env:"PASSAGE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PASSAGE_LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`

	ReadHeaderTimeout time.Duration `env:"PASSAGE_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s" validate:"duration_gt0"`
	ReadTimeout       time.Duration `env:"PASSAGE_HTTP_READ_TIMEOUT" envDefault:"15s" validate:"duration_gt0"`
	WriteTimeout      time.Duration `env:"PASSAGE_HTTP_WRITE_TIMEOUT" envDefault:"15s" validate:"duration_gt0"`
	IdleTimeout       time.Duration `env:"PASSAGE_HTTP_IDLE_TIMEOUT" envDefault:"60s" validate:"duration_gt0"`
	MaxHeaderBytes    int           `env:"PASSAGE_HTTP_MAX_HEADER_BYTES" envDefault:"1048576" validate:"gt=0"`
	ShutdownTimeout   time.Duration `env:"PASSAGE_SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"duration_gt0"`

	DatabaseURL string `env:"PASSAGE_DATABASE_URL" validate:"required_if=SessionStore postgres"`
	DBMaxConns  int32  `env:"PASSAGE_DB_MAX_CONNS" envDefault:"10" validate:"gt=0"`
	DBMinConns  int32  `env:"PASSAGE_DB_MIN_CONNS" envDefault:"0" validate:"gte=0,ltefield=DBMaxConns"`
	DBMigrate   bool   `env:"PASSAGE_DB_MIGRATE" envDefault:"true"`

	// SessionStore picks the refresh-token backend. Empty means postgres when
	// a database is configured and memory otherwise.
	SessionStore  string `env:"PASSAGE_SESSION_STORE" validate:"omitempty,oneof=memory postgres mongo"`
	MongoURL      string `env:"PASSAGE_MONGO_URL" validate:"required_if=SessionStore mongo"`
	MongoDatabase string `env:"PASSAGE_MONGO_DATABASE" envDefault:"passage"`

	RedisAddr     string `env:"PASSAGE_REDIS_ADDR"`
	RedisPassword string `env:"PASSAGE_REDIS_PASSWORD"`
	RedisDB       int    `env:"PASSAGE_REDIS_DB" envDefault:"0" validate:"gte=0"`

	MetricsEnabled bool `env:"PASSAGE_METRICS_ENABLED" envDefault:"true"`

	// If true, /readyz returns 503 unless a database is configured and reachable.
	ReadinessRequireDB bool `env:"PASSAGE_READINESS_REQUIRE_DB" envDefault:"false"`

	BootstrapAdminUsername string `env:"PASSAGE_BOOTSTRAP_ADMIN_USERNAME"`
	BootstrapAdminPassword string `env:"PASSAGE_BOOTSTRAP_ADMIN_PASSWORD" validate:"required_with=BootstrapAdminUsername"`
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconf.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("app config: %w", err)
	}
	return cfg, nil
}

// sessionBackend resolves the effective session store.
func (c Config) sessionBackend() string {
	if c.SessionStore != "" {
		return c.SessionStore
	}
	if c.DatabaseURL != "" {
		return "postgres"
	}
	return "memory"
}
