package valuation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// MarkCache is a redis read-through cache in front of a MarkSource.
// Cache trouble is never fatal: on any redis error the lookup falls
// through to the underlying source.
type MarkCache struct {
	next   MarkSource
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewMarkCache wraps a mark source with a redis cache.
func NewMarkCache(next MarkSource, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *MarkCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkCache{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(key Key) string {
	return fmt.Sprintf("mark:%s:%d", key.MarketID, key.Outcome)
}

// MarkPrice implements MarkSource.
func (c *MarkCache) MarkPrice(ctx context.Context, key Key) (float64, error) {
	val, err := c.rdb.Get(ctx, cacheKey(key)).Result()
	if err == nil {
		if p, perr := strconv.ParseFloat(val, 64); perr == nil {
			return p, nil
		}
	} else if err != redis.Nil {
		c.logger.Debug("mark cache read failed", "key", key.String(), "error", err)
	}

	p, err := c.next.MarkPrice(ctx, key)
	if err != nil {
		return 0, err
	}
	c.set(ctx, key, p)
	return p, nil
}

// MarkPrices implements MarkSource. Cached keys are answered from redis in
// one MGET; the rest go to the underlying source in one batch.
func (c *MarkCache) MarkPrices(ctx context.Context, keys []Key) (map[Key]float64, error) {
	if len(keys) == 0 {
		return map[Key]float64{}, nil
	}

	out := make(map[Key]float64, len(keys))
	missing := keys

	cacheKeys := make([]string, len(keys))
	for i, k := range keys {
		cacheKeys[i] = cacheKey(k)
	}
	vals, err := c.rdb.MGet(ctx, cacheKeys...).Result()
	if err != nil {
		c.logger.Debug("mark cache batch read failed", "error", err)
	} else {
		missing = missing[:0:0]
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, keys[i])
				continue
			}
			p, perr := strconv.ParseFloat(s, 64)
			if perr != nil {
				missing = append(missing, keys[i])
				continue
			}
			out[keys[i]] = p
		}
	}

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.next.MarkPrices(ctx, missing)
	if err != nil {
		return nil, err
	}
	for k, p := range fetched {
		out[k] = p
		c.set(ctx, k, p)
	}
	return out, nil
}

// set writes a price to redis, best effort.
func (c *MarkCache) set(ctx context.Context, key Key, price float64) {
	val := strconv.FormatFloat(price, 'g', -1, 64)
	if err := c.rdb.Set(ctx, cacheKey(key), val, c.ttl).Err(); err != nil {
		c.logger.Debug("mark cache write failed", "key", key.String(), "error", err)
	}
}
