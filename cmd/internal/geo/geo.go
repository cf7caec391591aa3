// Package geo resolves client IP addresses to a coarse location for the
// login-history audit trail.
//
// Lookups are best effort. Callers record an empty Location when a lookup
// fails rather than failing the request.
package geo

import (
	"context"
	"net"
	"time"

	"passage/cmd/internal/envconf"
)

// Location is the city-level position attached to a login-history entry.
type Location struct {
	City      string  `json:"city" bson:"city"`
	Country   string  `json:"country" bson:"country"`
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// Resolver maps an IP address to a Location.
type Resolver interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// Noop resolves every address to the zero Location.
type Noop struct{}

func (Noop) Lookup(context.Context, string) (Location, error) { return Location{}, nil }

// Config controls the HTTP lookup client and its cache.
type Config struct {
	Enabled  bool          `env:"PASSAGE_GEO_ENABLED" envDefault:"false"`
	BaseURL  string        `env:"PASSAGE_GEO_BASE_URL" envDefault:"http://ip-api.com" validate:"required,url"`
	Timeout  time.Duration `env:"PASSAGE_GEO_TIMEOUT" envDefault:"2s" validate:"duration_gt0"`
	CacheTTL time.Duration `env:"PASSAGE_GEO_CACHE_TTL" envDefault:"24h" validate:"duration_gt0"`
}

// LoadConfigFromEnv loads geo config from environment variables.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconf.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// isPublic reports whether ip is worth sending to a lookup service.
func isPublic(raw string) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast())
}
