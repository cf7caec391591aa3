package geo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "geo:ip:"

// CachedResolver memoizes lookups in Redis. Cache failures degrade to a
// direct lookup.
type CachedResolver struct {
	inner  Resolver
	client redis.UniversalClient
	ttl    time.Duration
	log    *zap.Logger
}

// NewCachedResolver wraps inner with a Redis cache.
func NewCachedResolver(inner Resolver, client redis.UniversalClient, ttl time.Duration, log *zap.Logger) *CachedResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedResolver{inner: inner, client: client, ttl: ttl, log: log}
}

func (c *CachedResolver) Lookup(ctx context.Context, ip string) (Location, error) {
	if !isPublic(ip) {
		return Location{}, nil
	}
	key := cacheKeyPrefix + ip

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var loc Location
		if jerr := json.Unmarshal(raw, &loc); jerr == nil {
			return loc, nil
		}
		c.log.Warn("geo.cache.corrupt", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("geo.cache.get_failed", zap.Error(err))
	}

	loc, err := c.inner.Lookup(ctx, ip)
	if err != nil {
		return Location{}, err
	}

	b, err := json.Marshal(loc)
	if err == nil {
		if serr := c.client.Set(ctx, key, b, c.ttl).Err(); serr != nil {
			c.log.Warn("geo.cache.set_failed", zap.Error(serr))
		}
	}
	return loc, nil
}
