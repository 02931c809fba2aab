package specification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ehr/labspec/internal/platform/db"
)

// DefaultCacheTTL bounds how stale a cached dynamic listing may get.
const DefaultCacheTTL = 30 * time.Second

// CachedCatalog serves ListDynamic from Redis when possible. The cache is
// best-effort: any Redis failure falls through to the wrapped catalog.
type CachedCatalog struct {
	Catalog
	rdb    redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedCatalog wraps next. A nil rdb disables caching.
func NewCachedCatalog(next Catalog, rdb redis.Cmdable, ttl time.Duration, logger zerolog.Logger) Catalog {
	if rdb == nil {
		return next
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedCatalog{Catalog: next, rdb: rdb, ttl: ttl, logger: logger}
}

func dynamicCacheKey(ctx context.Context) string {
	tenant := db.TenantFromContext(ctx)
	if tenant == "" {
		tenant = "default"
	}
	return fmt.Sprintf("labspec:%s:dynamic", tenant)
}

func (c *CachedCatalog) ListDynamic(ctx context.Context) ([]*DynamicSpecification, error) {
	key := dynamicCacheKey(ctx)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []*DynamicSpecification
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			return cached, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding undecodable dynamic specification cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("key", key).Msg("dynamic specification cache read failed")
	}

	specs, err := c.Catalog.ListDynamic(ctx)
	if err != nil {
		return nil, err
	}
	if payload, jerr := json.Marshal(specs); jerr == nil {
		if serr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
			c.logger.Warn().Err(serr).Str("key", key).Msg("dynamic specification cache write failed")
		}
	}
	return specs, nil
}
