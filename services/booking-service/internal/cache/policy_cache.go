package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
)

const keyPrefix = "booking:operating_hours:"

// PolicyCache is a Redis read-through cache in front of a policy.Provider.
// Only stored policies are cached; ErrNotConfigured passes through uncached so a salon's
// first configuration is visible immediately. Redis failures fall back to the next provider.
type PolicyCache struct {
	next   policy.Provider
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewPolicyCache(next policy.Provider, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *PolicyCache {
	return &PolicyCache{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *PolicyCache) GetOperatingHours(ctx context.Context, salonID string) (policy.OperatingHours, error) {
	if c.rdb == nil || c.ttl <= 0 {
		return c.next.GetOperatingHours(ctx, salonID)
	}

	var h policy.OperatingHours
	if c.read(ctx, salonID, &h) {
		metrics.IncPolicyCache("hit")
		return h, nil
	}
	metrics.IncPolicyCache("miss")

	h, err := c.next.GetOperatingHours(ctx, salonID)
	if err != nil {
		return policy.OperatingHours{}, err
	}
	c.write(ctx, salonID, h)
	return h, nil
}

// Invalidate drops the cached policy of a salon after it was edited.
func (c *PolicyCache) Invalidate(ctx context.Context, salonID string) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, keyPrefix+salonID).Err()
}

func (c *PolicyCache) read(ctx context.Context, salonID string, out *policy.OperatingHours) bool {
	val, err := c.rdb.Get(ctx, keyPrefix+salonID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.logger != nil {
			c.logger.Warn("policy cache read failed", "salon_id", salonID, "err", err)
		}
		return false
	}
	if err := json.Unmarshal(val, out); err != nil {
		return false
	}
	out.SalonID = salonID
	return true
}

func (c *PolicyCache) write(ctx context.Context, salonID string, h policy.OperatingHours) {
	data, err := json.Marshal(h)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+salonID, data, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("policy cache write failed", "salon_id", salonID, "err", err)
	}
}
