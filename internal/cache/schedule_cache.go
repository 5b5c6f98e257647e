package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shophours/internal/hours"
	"shophours/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "shophours:schedule:"

// Store is the backing schedule store.
type Store interface {
	GetSchedule(ctx context.Context, shopID string) (hours.WeeklySchedule, error)
	SaveSchedule(ctx context.Context, shopID string, schedule hours.WeeklySchedule) error
}

// ScheduleCache is a read-through Redis cache in front of a Store.
// Writes go to the store first and then drop the cached entry. Redis
// failures degrade to store reads.
type ScheduleCache struct {
	store  Store
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewScheduleCache(store Store, client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *ScheduleCache {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ScheduleCache{store: store, redis: client, ttl: ttl, logger: logger}
}

func cacheKey(shopID string) string {
	return keyPrefix + shopID
}

// GetSchedule serves from Redis when possible. Missing shops are not cached.
func (c *ScheduleCache) GetSchedule(ctx context.Context, shopID string) (hours.WeeklySchedule, error) {
	if ws, ok := c.readCache(ctx, shopID); ok {
		metrics.IncScheduleCache("hit")
		return ws, nil
	}
	metrics.IncScheduleCache("miss")

	ws, err := c.store.GetSchedule(ctx, shopID)
	if err != nil {
		return hours.WeeklySchedule{}, err
	}
	c.writeCache(ctx, shopID, ws)
	return ws, nil
}

func (c *ScheduleCache) SaveSchedule(ctx context.Context, shopID string, schedule hours.WeeklySchedule) error {
	if err := c.store.SaveSchedule(ctx, shopID, schedule); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, shopID); err != nil {
		c.logger.Warn().Err(err).Str("shop_id", shopID).Msg("failed to drop cached schedule")
	}
	return nil
}

// Invalidate drops the cached schedule of a shop.
func (c *ScheduleCache) Invalidate(ctx context.Context, shopID string) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, cacheKey(shopID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks Redis for readiness probes.
func (c *ScheduleCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

func (c *ScheduleCache) readCache(ctx context.Context, shopID string) (hours.WeeklySchedule, bool) {
	if c.redis == nil || c.ttl <= 0 {
		return hours.WeeklySchedule{}, false
	}
	val, err := c.redis.Get(ctx, cacheKey(shopID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			metrics.IncScheduleCache("error")
			c.logger.Debug().Err(err).Str("shop_id", shopID).Msg("schedule cache read failed")
		}
		return hours.WeeklySchedule{}, false
	}
	var ws hours.WeeklySchedule
	if err := json.Unmarshal(val, &ws); err != nil {
		c.logger.Warn().Err(err).Str("shop_id", shopID).Msg("discarding corrupt cached schedule")
		_ = c.redis.Del(ctx, cacheKey(shopID)).Err()
		return hours.WeeklySchedule{}, false
	}
	return ws, true
}

func (c *ScheduleCache) writeCache(ctx context.Context, shopID string, ws hours.WeeklySchedule) {
	if c.redis == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(ws)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(shopID), data, c.ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Str("shop_id", shopID).Msg("schedule cache write failed")
	}
}
