// Package cache implements the route cache on Redis with positive and
// negative entries. The cache is an optimization layer only; the record store
// stays authoritative and TTLs bound staleness.
package cache

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/routesrv/config"
	"github.com/routeplane/routeplane/internal/routesrv/resilience"
	"github.com/routeplane/routeplane/internal/routesrv/routecommon"
)

// ErrCache is the base error for cache failures.
var ErrCache = apperrors.New("cache error").SetStatusCode(http.StatusInternalServerError)

// Lookup is the outcome of a cache read.
type Lookup struct {
	// Found is true when the key was present at all.
	Found bool
	// Negative is true when the entry is the not-found sentinel.
	Negative bool
	// URL holds the cached value for positive entries.
	URL string
}

// RouteCache wraps the Redis client with the TTL policy.
type RouteCache struct {
	client      *redis.Client
	positiveTTL time.Duration
	negativeTTL time.Duration
	opTimeout   time.Duration
}

// NewRouteCache connects to Redis and verifies connectivity with a ping.
func NewRouteCache(cfg *config.RedisConfig) (*RouteCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	opTimeout := time.Duration(cfg.OperationTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Error().Err(err).Str("addr", cfg.Addr).Msg("failed to connect to redis")
		client.Close()
		return nil, err
	}
	log.Info().Str("addr", cfg.Addr).Msg("connected to redis")

	return &RouteCache{
		client:      client,
		positiveTTL: time.Duration(cfg.PositiveTTL) * time.Second,
		negativeTTL: time.Duration(cfg.NegativeTTL) * time.Second,
		opTimeout:   opTimeout,
	}, nil
}

// NewRouteCacheWithClient wraps an existing client. Used by tests with
// miniredis-style fakes.
func NewRouteCacheWithClient(client *redis.Client, positiveTTL, negativeTTL time.Duration) *RouteCache {
	return &RouteCache{
		client:      client,
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
		opTimeout:   2 * time.Second,
	}
}

// Get looks up the route. redis.Nil is a miss, the sentinel value is a
// negative hit, anything else is a positive hit.
func (c *RouteCache) Get(ctx context.Context, id routecommon.RouteID) (Lookup, apperrors.Error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, id.CacheKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Lookup{}, nil
		}
		return Lookup{}, classify(ctx, err, "cache get failed")
	}
	if val == routecommon.NegativeCacheValue {
		return Lookup{Found: true, Negative: true}, nil
	}
	return Lookup{Found: true, URL: val}, nil
}

// SetPositive stores the resolved URL with the positive TTL.
func (c *RouteCache) SetPositive(ctx context.Context, id routecommon.RouteID, url string) apperrors.Error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, id.CacheKey(), url, c.positiveTTL).Err(); err != nil {
		return classify(ctx, err, "cache set failed")
	}
	return nil
}

// SetNegative stores the not-found sentinel with the shorter negative TTL.
func (c *RouteCache) SetNegative(ctx context.Context, id routecommon.RouteID) apperrors.Error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, id.CacheKey(), routecommon.NegativeCacheValue, c.negativeTTL).Err(); err != nil {
		return classify(ctx, err, "cache set failed")
	}
	return nil
}

// Delete removes the entry for the route. Deleting a missing key is a no-op.
func (c *RouteCache) Delete(ctx context.Context, id routecommon.RouteID) apperrors.Error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, id.CacheKey()).Err(); err != nil {
		return classify(ctx, err, "cache delete failed")
	}
	return nil
}

// Ping verifies connectivity for the readiness probe.
func (c *RouteCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *RouteCache) Close() error {
	return c.client.Close()
}

// classify maps redis failures into the taxonomy. Connection and timeout
// errors are transient so the kernel may retry them.
func classify(ctx context.Context, err error, msg string) apperrors.Error {
	log.Ctx(ctx).Warn().Err(err).Msg(msg)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return resilience.ErrTransient.MsgErr(msg, err)
	}
	// go-redis surfaces broken connections as generic errors; treat every
	// non-protocol failure as transient
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return ErrCache.MsgErr(msg, err)
	}
	return resilience.ErrTransient.MsgErr(msg, err)
}
