// internal/sources/cache/cache.go
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/common/metrics"
	"analytics-assistant/internal/models"
	"analytics-assistant/internal/sources"

	"github.com/redis/go-redis/v9"
)

// Config sets the cache TTL and key prefix.
type Config struct {
	TTL       time.Duration
	KeyPrefix string
}

// CachedFetcher wraps a historical fetcher with a Redis read-through cache.
// Entries live for exactly TTL and are never refreshed; failed fetches are
// not stored. Other sources pass straight through.
type CachedFetcher struct {
	next   sources.Fetcher
	rdb    redis.Cmdable
	config Config
	logger logger.Logger
}

// NewCachedFetcher wraps next with a Redis read-through cache.
func NewCachedFetcher(next sources.Fetcher, rdb redis.Cmdable, config Config, log logger.Logger) *CachedFetcher {
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "assistant:fetch:"
	}
	return &CachedFetcher{
		next:   next,
		rdb:    rdb,
		config: config,
		logger: logger.Component(log, "fetch-cache"),
	}
}

// Key identifies a plan. Window bounds are truncated to the TTL so requests
// seconds apart share an entry.
func (c *CachedFetcher) Key(plan models.FetchPlan) string {
	k := plan
	k.TimeRange.Start = k.TimeRange.Start.Truncate(c.config.TTL)
	k.TimeRange.End = k.TimeRange.End.Truncate(c.config.TTL)
	if k.TimeRange.HasComparison() {
		cs := k.TimeRange.ComparisonStart.Truncate(c.config.TTL)
		ce := k.TimeRange.ComparisonEnd.Truncate(c.config.TTL)
		k.TimeRange.ComparisonStart, k.TimeRange.ComparisonEnd = &cs, &ce
	}
	raw, _ := json.Marshal(k)
	sum := sha256.Sum256(raw)
	return c.config.KeyPrefix + hex.EncodeToString(sum[:])
}

// Fetch serves a cached payload when present and stores successful misses.
func (c *CachedFetcher) Fetch(ctx context.Context, plan models.FetchPlan) (*models.DataPayload, error) {
	if plan.Source != models.SourceHistorical {
		return c.next.Fetch(ctx, plan)
	}

	key := c.Key(plan)
	if payload, ok := c.lookup(ctx, key); ok {
		return payload, nil
	}

	payload, err := c.next.Fetch(ctx, plan)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(payload); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
			c.logger.Warn("cache store failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return payload, nil
}

func (c *CachedFetcher) lookup(ctx context.Context, key string) (*models.DataPayload, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("cache lookup failed", map[string]interface{}{"error": err.Error()})
		return nil, false
	}

	var payload models.DataPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	payload.Cached = true
	payload.SourceLatencyMs = 0
	return &payload, true
}
