package fx

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// DefaultRateTTL matches the daily refresh of the upstream provider.
const DefaultRateTTL = 24 * time.Hour

// CachedRateSource serves rates from process memory, then Redis, then the wrapped source.
// Redis is optional; its failures are logged and skipped.
type CachedRateSource struct {
	next   RateSource
	local  *gocache.Cache
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRateSource wraps next. A nil client disables the shared level.
func NewCachedRateSource(next RateSource, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRateSource {
	if ttl <= 0 {
		ttl = DefaultRateTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRateSource{
		next:   next,
		local:  gocache.New(ttl, time.Hour),
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}
}

// RateKey is the Redis key for a pair.
func RateKey(from, to string) string {
	return "fx:rate:" + PairKey(from, to)
}

func (c *CachedRateSource) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	key := RateKey(from, to)
	if v, ok := c.local.Get(key); ok {
		return v.(decimal.Decimal), nil
	}

	if c.redis != nil {
		raw, err := c.redis.Get(ctx, key).Result()
		switch {
		case err == nil:
			if rate, perr := decimal.NewFromString(raw); perr == nil {
				c.local.Set(key, rate, gocache.DefaultExpiration)
				return rate, nil
			}
			c.logger.Warn("fx: discarding malformed cached rate", slog.String("key", key))
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("fx: redis get failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	rate, err := c.next.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	c.local.Set(key, rate, gocache.DefaultExpiration)
	if c.redis != nil {
		if err := c.redis.Set(ctx, key, rate.String(), c.ttl).Err(); err != nil {
			c.logger.Warn("fx: redis set failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return rate, nil
}
